package main

import (
	"flag"
	"log"

	"github.com/danmuck/roomlink/internal/config"
)

func main() {
	kind := flag.String("kind", "ddpctl", "config kind: ddpctl|fakeroom")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "", "config path for validation (defaults to per-kind cmd path)")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if _, err := config.Template(*kind); err != nil {
		log.Fatal(err)
	}
	defaultPath := "cmd/" + *kind + "/config.toml"

	if *validate {
		path := *input
		if path == "" {
			path = defaultPath
		}
		if _, err := config.Load(path); err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated %s config at %s", *kind, path)
		return
	}

	target := *output
	if target == "" {
		target = defaultPath
	}
	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s config template to %s", *kind, target)
}
