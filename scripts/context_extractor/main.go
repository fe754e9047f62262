package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/gnemet/SlideEdit/internal/pptx"
	"github.com/spf13/pflag"
)

type unit struct {
	Slide int    `json:"slide"`
	Index int    `json:"index"`
	Shape string `json:"shape"`
	Kind  string `json:"kind"`
	Notes bool   `json:"notes,omitempty"`
	Text  string `json:"text"`
}

func main() {
	granularity := pflag.String("granularity", "paragraph", "paragraph or run")
	notes := pflag.Bool("notes", false, "include speaker notes")
	pflag.Parse()

	if pflag.NArg() < 1 {
		log.Fatal("Usage: go run ./scripts/context_extractor [--granularity run] [--notes] <pptx_path>")
	}
	g, err := pptx.ParseGranularity(*granularity)
	if err != nil {
		log.Fatal(err)
	}

	p, err := pptx.Open(pflag.Arg(0))
	if err != nil {
		log.Fatal(err)
	}

	units := []unit{}
	for u := range pptx.Walk(p, pptx.WalkOptions{Granularity: g, IncludeNotes: *notes}) {
		sh := u.Shape()
		units = append(units, unit{Slide: u.Slide, Index: u.Index, Shape: sh.Name, Kind: sh.Kind, Notes: sh.Notes, Text: u.Text()})
	}

	data, _ := json.MarshalIndent(units, "", "  ")
	fmt.Fprintln(os.Stdout, string(data))
}
