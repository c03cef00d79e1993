// Package bot exposes the classifier as a Telegram chat bot.
package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"aquamind/ml"
	"aquamind/potability"
)

const helpText = "Available commands:\n" +
	"/start - Start the bot\n" +
	"/features - List the nine readings and their defaults\n" +
	"/predict name=value ... - Classify a sample; readings you leave out use the defaults\n" +
	"/help - Show this help message\n\n" +
	"Example: /predict ph=6.8 Hardness=180 Turbidity=3.2"

// TelegramBot answers classification commands.
type TelegramBot struct {
	bot        *tgbotapi.BotAPI
	classifier potability.Classifier
	logger     *zap.Logger
}

// NewTelegramBot authorizes token against the Telegram API.
func NewTelegramBot(token string, classifier potability.Classifier, logger *zap.Logger) (*TelegramBot, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token is empty")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TelegramBot{bot: api, classifier: classifier, logger: logger.Named("telegram")}, nil
}

// Start long-polls for updates until ctx is cancelled.
func (t *TelegramBot) Start(ctx context.Context) {
	t.logger.Info("authorized on telegram", zap.String("account", t.bot.Self.UserName))

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := t.bot.GetUpdatesChan(u)
	defer t.bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}
			t.handleMessage(ctx, update.Message)
		}
	}
}

func (t *TelegramBot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	var text string
	if message.IsCommand() {
		text = Respond(ctx, t.classifier, message.Command(), message.CommandArguments())
	} else {
		text = "I don't understand. Use /help to see available commands."
	}

	t.logger.Info("message handled",
		zap.Int64("chat_id", message.Chat.ID),
		zap.String("command", message.Command()),
	)
	if _, err := t.bot.Send(tgbotapi.NewMessage(message.Chat.ID, text)); err != nil {
		t.logger.Error("send failed", zap.Error(err))
	}
}

// Respond builds the reply text for one command.
func Respond(ctx context.Context, classifier potability.Classifier, command, args string) string {
	switch command {
	case "start":
		return "Welcome to the water potability bot! Send /predict with your readings or /help for more information."
	case "help":
		return helpText
	case "features":
		return featuresText()
	case "predict":
		sample, err := ParsePredictArgs(args)
		if err != nil {
			return fmt.Sprintf("Could not read the sample: %v\n\n%s", err, helpText)
		}
		res := classifier.Classify(ctx, sample)
		return formatResult(sample, res)
	default:
		return "Unknown command. Use /help to see available commands."
	}
}

// ParsePredictArgs reads "name=value" pairs separated by spaces or commas.
// Names match the training columns case-insensitively; unset readings keep
// their default.
func ParsePredictArgs(args string) (ml.WaterSample, error) {
	sample := ml.DefaultSample()
	fields := strings.FieldsFunc(args, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\n' || r == '\t'
	})
	for _, field := range fields {
		name, raw, ok := strings.Cut(field, "=")
		if !ok {
			return ml.WaterSample{}, fmt.Errorf("%q is not name=value", field)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return ml.WaterSample{}, fmt.Errorf("%s: %q is not a number", name, raw)
		}
		if err := sample.Set(name, v); err != nil {
			return ml.WaterSample{}, err
		}
	}
	return sample, nil
}

func featuresText() string {
	var b strings.Builder
	b.WriteString("Readings (default in brackets):\n")
	defaults := ml.DefaultSample().Values()
	for _, name := range ml.FeatureNames() {
		fmt.Fprintf(&b, "• %s [%g]\n", name, defaults[name])
	}
	return b.String()
}

func formatResult(sample ml.WaterSample, res potability.Result) string {
	var b strings.Builder
	b.WriteString(res.String())
	for _, w := range res.Warnings {
		b.WriteString("\n⚠ ")
		b.WriteString(w.String())
	}
	b.WriteString("\n\nReadings:")
	values := sample.Values()
	for _, name := range ml.FeatureNames() {
		fmt.Fprintf(&b, " %s=%g", name, values[name])
	}
	return b.String()
}
