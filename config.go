package main

import (
	"github.com/jessevdk/go-flags"
)

type config struct {
	ShowVersion    bool   `short:"V" long:"version" description:"Display version information and exit"`
	Debug          bool   `long:"debug" description:"Start in debug mode"`
	DataDir        string `long:"datadir" default:"./data" description:"Directory holding the update database and staged downloads"`
	Listen         string `long:"listen" default:"127.0.0.1:9480" description:"Address the shell API listens on"`
	UpdateEndpoint string `long:"updateendpoint" description:"URL of the Roster update service"`
	UpdateToken    string `long:"updatetoken" description:"Bearer token for the Roster update service"`
	Platform       string `long:"platform" description:"Override the detected platform (win32, darwin, linux)"`
	AppVersion     string `long:"appversion" description:"Override the application version reported to the update service"`
}

// loadConfig parses CLI arguments over the built-in defaults.
func loadConfig() (*config, error) {
	cfg := config{}

	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
