package ml

import (
	"bytes"
	"strings"
	"testing"
)

const uploadCSV = `ph,Hardness,Solids,Chloramines,Sulfate,Conductivity,Organic_carbon,Trihalomethanes,Turbidity
7.0,150,20000,7,350,500,10,60,4
5.5,210.5,18000,6.1,420,410,12,70,3.9
`

func TestReadFrame(t *testing.T) {
	frame, err := ReadFrame(strings.NewReader(uploadCSV))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", frame.Len())
	}
	if frame.Columns[6] != "Organic_carbon" {
		t.Fatalf("unexpected columns: %v", frame.Columns)
	}
	if frame.Rows[1][1] != 210.5 {
		t.Fatalf("unexpected value: %v", frame.Rows[1][1])
	}
}

func TestReadFrameByteOrderMark(t *testing.T) {
	withBOM := append([]byte{0xEF, 0xBB, 0xBF}, uploadCSV...)
	frame, err := ReadFrame(bytes.NewReader(withBOM))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame.Columns[0] != "ph" {
		t.Fatalf("byte-order mark leaked into header: %q", frame.Columns[0])
	}

	// UTF-16LE with BOM, as written by some spreadsheet tools.
	var utf16 bytes.Buffer
	utf16.Write([]byte{0xFF, 0xFE})
	for _, r := range "ph,Hardness\n7,150\n" {
		utf16.Write([]byte{byte(r), 0})
	}
	frame, err = ReadFrame(&utf16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame.Columns[1] != "Hardness" || frame.Rows[0][1] != 150 {
		t.Fatalf("utf-16 upload decoded badly: %+v", frame)
	}
}

func TestReadFrameErrors(t *testing.T) {
	cases := map[string]string{
		"empty":         "",
		"header only":   "ph,Hardness\n",
		"not a number":  "ph,Hardness\n7,hard\n",
		"empty cell":    "ph,Hardness\n7,\n",
		"ragged row":    "ph,Hardness\n7,150,3\n",
		"duplicate":     "ph,ph\n7,7\n",
		"blank heading": "ph,\n7,7\n",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ReadFrame(strings.NewReader(input)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
