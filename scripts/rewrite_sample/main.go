package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gnemet/SlideEdit/internal/ai"
	"github.com/gnemet/SlideEdit/internal/config"
	"github.com/gnemet/SlideEdit/internal/editor"
	"github.com/spf13/pflag"
)

func main() {
	envPath := pflag.String("env", "", ".env to load; empty uses the mock driver")
	mode := pflag.String("mode", "shorten", "edit mode")
	pflag.Parse()

	// 1. Config: either a real .env or a mock provider
	cfg := &config.Config{Model: config.ModelConfig{Driver: config.DriverMock, Name: "mock"}}
	if *envPath != "" {
		var err error
		if cfg, err = config.Load(*envPath); err != nil {
			log.Fatal(err)
		}
		if err := cfg.Validate(); err != nil {
			log.Fatal(err)
		}
	}

	client, err := ai.NewClient(cfg)
	if err != nil {
		log.Fatal(err)
	}

	slideText := "SlideEdit walks every text frame of a presentation in slide order and sends each paragraph to a local language model, writing the revised text back without touching layout, images or formatting."
	if pflag.NArg() > 0 {
		slideText = pflag.Arg(0)
	}
	fmt.Printf("Input Text: %s\n\n", slideText)

	reply, err := revise(client, *mode, slideText)
	if err != nil {
		log.Fatalf("AI Error: %v", err)
	}
	fmt.Printf("Revised (%s via %s): %s\n", *mode, client.Provider, reply)
}

// revise sends text through c with the prompt of mode. The request is bounded
// only by REQUEST_TIMEOUT inside the client, like the CLI.
func revise(c editor.Completer, mode, text string) (string, error) {
	systemPrompt, err := editor.ResolveMode(mode)
	if err != nil {
		return "", err
	}
	return c.Complete(context.Background(), systemPrompt, text)
}
