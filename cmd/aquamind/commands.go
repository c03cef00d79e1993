package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/subcommands"
	"go.uber.org/zap"

	"aquamind/bot"
	"aquamind/config"
	"aquamind/db"
	qhttp "aquamind/http"
	"aquamind/ml"
	"aquamind/monitoring"
)

type classifyCmd struct {
	g       *globals
	sample  ml.WaterSample
	stdin   bool
	asJSON  bool
	timeout time.Duration
}

func (*classifyCmd) Name() string     { return "classify" }
func (*classifyCmd) Synopsis() string { return "classify one water sample" }
func (*classifyCmd) Usage() string {
	return `classify [-ph 7.0] [-Hardness 150] ... [-stdin] [-json]:
  Classify one sample. Readings not given keep their defaults. With -stdin a
  JSON object holding all nine readings is read after the model has loaded.
`
}

func (c *classifyCmd) SetFlags(f *flag.FlagSet) {
	d := ml.DefaultSample()
	f.Float64Var(&c.sample.PH, "ph", d.PH, "pH")
	f.Float64Var(&c.sample.Hardness, "Hardness", d.Hardness, "hardness (mg/L)")
	f.Float64Var(&c.sample.Solids, "Solids", d.Solids, "total dissolved solids (ppm)")
	f.Float64Var(&c.sample.Chloramines, "Chloramines", d.Chloramines, "chloramines (ppm)")
	f.Float64Var(&c.sample.Sulfate, "Sulfate", d.Sulfate, "sulfate (mg/L)")
	f.Float64Var(&c.sample.Conductivity, "Conductivity", d.Conductivity, "conductivity (μS/cm)")
	f.Float64Var(&c.sample.OrganicCarbon, "Organic_carbon", d.OrganicCarbon, "organic carbon (ppm)")
	f.Float64Var(&c.sample.Trihalomethanes, "Trihalomethanes", d.Trihalomethanes, "trihalomethanes (μg/L)")
	f.Float64Var(&c.sample.Turbidity, "Turbidity", d.Turbidity, "turbidity (NTU)")
	f.BoolVar(&c.stdin, "stdin", false, "read the sample as JSON from standard input")
	f.BoolVar(&c.asJSON, "json", false, "print the result as JSON")
	f.DurationVar(&c.timeout, "timeout", 30*time.Second, "classification timeout")
}

func (c *classifyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := c.g.env()
	if err != nil {
		fmt.Fprintln(c.g.stderr, err)
		return subcommands.ExitUsageError
	}
	defer e.logger.Sync()

	classifier, err := e.newClassifier(ctx, false)
	if err != nil {
		c.g.reportLoadError(err)
		return subcommands.ExitFailure
	}

	sample := c.sample
	if c.stdin {
		values := map[string]float64{}
		if err := json.NewDecoder(c.g.stdin).Decode(&values); err != nil {
			fmt.Fprintf(c.g.stderr, "invalid sample: %v\n", err)
			return subcommands.ExitUsageError
		}
		if sample, err = ml.SampleFromMap(values); err != nil {
			fmt.Fprintf(c.g.stderr, "invalid sample: %v\n", err)
			return subcommands.ExitUsageError
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	res := classifier.Classify(ctx, sample)

	if c.asJSON {
		writeJSON(c.g.stdout, res)
	} else {
		fmt.Fprintln(c.g.stdout, res.String())
		for _, w := range res.Warnings {
			fmt.Fprintf(c.g.stdout, "warning: %s\n", w)
		}
	}
	if res.Failed() {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type batchCmd struct {
	g      *globals
	asJSON bool
}

func (*batchCmd) Name() string     { return "batch" }
func (*batchCmd) Synopsis() string { return "run the model over a CSV table" }
func (*batchCmd) Usage() string {
	return `batch [-json] <file.csv | ->:
  Predict every row of a CSV whose header names the columns. Raw model
  outputs are printed one per row.
`
}

func (c *batchCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.asJSON, "json", false, "print the result as JSON")
}

func (c *batchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprint(c.g.stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	e, err := c.g.env()
	if err != nil {
		fmt.Fprintln(c.g.stderr, err)
		return subcommands.ExitUsageError
	}
	defer e.logger.Sync()

	classifier, err := e.newClassifier(ctx, false)
	if err != nil {
		c.g.reportLoadError(err)
		return subcommands.ExitFailure
	}

	var in io.Reader = c.g.stdin
	if name := f.Arg(0); name != "-" {
		file, err := os.Open(name)
		if err != nil {
			fmt.Fprintln(c.g.stderr, err)
			return subcommands.ExitFailure
		}
		defer file.Close()
		in = file
	}
	frame, err := ml.ReadFrame(in)
	if err != nil {
		fmt.Fprintf(c.g.stderr, "invalid csv: %v\n", err)
		return subcommands.ExitFailure
	}

	res := classifier.ClassifyBatch(ctx, frame)
	if c.asJSON {
		writeJSON(c.g.stdout, res)
	} else if !res.Failed() {
		for i, p := range res.Predictions {
			fmt.Fprintf(c.g.stdout, "%d\t%v\n", i+1, p)
		}
	}
	if res.Failed() {
		fmt.Fprintf(c.g.stderr, "Error while making prediction: %s\n", res.Err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type inspectCmd struct {
	g    *globals
	list bool
}

func (*inspectCmd) Name() string     { return "inspect" }
func (*inspectCmd) Synopsis() string { return "describe the configured model" }
func (*inspectCmd) Usage() string {
	return `inspect [-list]:
  Load the configured model and print its metadata. With -list, print the
  artifacts held in the model database instead.
`
}

func (c *inspectCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.list, "list", false, "list stored artifacts")
}

func (c *inspectCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := c.g.env()
	if err != nil {
		fmt.Fprintln(c.g.stderr, err)
		return subcommands.ExitUsageError
	}
	defer e.logger.Sync()

	if c.list {
		store, err := db.OpenArtifactStore(e.cfg.Model.Database)
		if err != nil {
			fmt.Fprintln(c.g.stderr, err)
			return subcommands.ExitFailure
		}
		defer store.Close()
		artifacts, err := store.List(ctx)
		if err != nil {
			fmt.Fprintln(c.g.stderr, err)
			return subcommands.ExitFailure
		}
		for _, a := range artifacts {
			fmt.Fprintf(c.g.stdout, "%s\t%s\t%s\t%s\n", a.Name, a.ModelType, a.Checksum[:12], a.CreatedAt.Format(time.RFC3339))
		}
		return subcommands.ExitSuccess
	}

	model, err := openModel(ctx, e.cfg)
	if err != nil {
		c.g.reportLoadError(err)
		return subcommands.ExitFailure
	}
	if h, ok := model.(interface{ Health(context.Context) error }); ok {
		if err := h.Health(ctx); err != nil {
			fmt.Fprintf(c.g.stderr, "remote model unhealthy: %v\n", err)
			return subcommands.ExitFailure
		}
	}
	writeJSON(c.g.stdout, ml.DescribeModel(model))
	return subcommands.ExitSuccess
}

type importModelCmd struct {
	g         *globals
	modelType string
}

func (*importModelCmd) Name() string     { return "import-model" }
func (*importModelCmd) Synopsis() string { return "store a model artifact in the model database" }
func (*importModelCmd) Usage() string {
	return `import-model [-type decision_tree] <name> <file>:
  Check that file decodes as a model, then store it under name.
`
}

func (c *importModelCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.modelType, "type", "", "artifact type (default: model.type from the configuration)")
}

func (c *importModelCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 2 {
		fmt.Fprint(c.g.stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	e, err := c.g.env()
	if err != nil {
		fmt.Fprintln(c.g.stderr, err)
		return subcommands.ExitUsageError
	}
	defer e.logger.Sync()

	modelType := c.modelType
	if modelType == "" {
		modelType = e.cfg.Model.Type
	}

	store, err := db.OpenArtifactStore(e.cfg.Model.Database)
	if err != nil {
		fmt.Fprintln(c.g.stderr, err)
		return subcommands.ExitFailure
	}
	defer store.Close()

	a, err := store.ImportFile(ctx, f.Arg(0), modelType, f.Arg(1))
	if err != nil {
		c.g.reportLoadError(err)
		return subcommands.ExitFailure
	}
	e.logger.Info("model imported", zap.String("name", a.Name), zap.String("checksum", a.Checksum))
	fmt.Fprintf(c.g.stdout, "%s\t%s\t%s\n", a.Name, a.ModelType, a.Checksum)
	return subcommands.ExitSuccess
}

type serveCmd struct {
	g *globals
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "serve the classification API" }
func (*serveCmd) Usage() string {
	return `serve:
  Serve the HTTP and websocket API until interrupted.
`
}

func (*serveCmd) SetFlags(*flag.FlagSet) {}

func (c *serveCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := c.g.env()
	if err != nil {
		fmt.Fprintln(c.g.stderr, err)
		return subcommands.ExitUsageError
	}
	defer e.logger.Sync()

	classifier, err := e.newClassifier(ctx, true)
	if err != nil {
		c.g.reportLoadError(err)
		return subcommands.ExitFailure
	}

	if e.cfg.Canary.Schedule != "" {
		canary, err := monitoring.NewCanary(classifier, e.cfg.Canary.Schedule, e.logger)
		if err != nil {
			fmt.Fprintln(c.g.stderr, err)
			return subcommands.ExitUsageError
		}
		canary.Start()
		defer canary.Stop()
	}
	if e.cfg.Model.Watch && e.cfg.Model.Source == config.SourceFile {
		if _, err := monitoring.WatchArtifact(ctx, e.cfg.Model.Path, e.logger); err != nil {
			e.logger.Warn("artifact watcher not started", zap.Error(err))
		}
	}

	server := qhttp.NewServer(qhttp.ServerConfig{
		Port:           e.cfg.Http.Port,
		Timeout:        e.cfg.Http.Timeout,
		AllowedOrigins: e.cfg.Http.AllowedOrigins,
		MaxUploadBytes: e.cfg.Http.MaxUploadBytes,
	}, qhttp.NewHandler(classifier, e.logger), e.logger)

	errc := make(chan error, 1)
	go func() { errc <- server.Start() }()

	select {
	case err := <-errc:
		if err != nil {
			e.logger.Error("HTTP server failed", zap.Error(err))
			return subcommands.ExitFailure
		}
	case <-ctx.Done():
		if err := server.Stop(); err != nil {
			e.logger.Error("shutdown failed", zap.Error(err))
			return subcommands.ExitFailure
		}
	}
	return subcommands.ExitSuccess
}

type botCmd struct {
	g *globals
}

func (*botCmd) Name() string     { return "bot" }
func (*botCmd) Synopsis() string { return "answer /predict commands on Telegram" }
func (*botCmd) Usage() string {
	return `bot:
  Run the Telegram bot. The token comes from bot.token or TELEGRAM_BOT_TOKEN.
`
}

func (*botCmd) SetFlags(*flag.FlagSet) {}

func (c *botCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := c.g.env()
	if err != nil {
		fmt.Fprintln(c.g.stderr, err)
		return subcommands.ExitUsageError
	}
	defer e.logger.Sync()

	classifier, err := e.newClassifier(ctx, true)
	if err != nil {
		c.g.reportLoadError(err)
		return subcommands.ExitFailure
	}
	tg, err := bot.NewTelegramBot(e.cfg.Bot.Token, classifier, e.logger)
	if err != nil {
		fmt.Fprintln(c.g.stderr, err)
		return subcommands.ExitFailure
	}
	tg.Start(ctx)
	return subcommands.ExitSuccess
}

func writeJSON(w io.Writer, v interface{}) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
