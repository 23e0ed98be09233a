package cmd

import "prodintel/internal/tui"

func runTUI() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	m := newMatcher(cfg)
	engine, err := newEngine(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	gen, err := newGenerator(cfg)
	if err != nil {
		return err
	}

	return tui.Run(tui.Deps{
		Matcher:   m,
		Engine:    engine,
		Generator: gen,
	})
}
