package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"catalogscan/pkg/config"
	"catalogscan/process/progress"
	"catalogscan/process/report"
)

func main() {
	dir := flag.String("dir", "", "output directory holding the checkpoints (default CATALOG_OUTPUT_DIR)")
	name := flag.String("name", "", "run name (default: newest run)")
	list := flag.Bool("list", false, "list every product and problematic item")
	flag.Parse()

	if *dir == "" {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		*dir = cfg.OutputDir
	}

	st, err := report.Load(context.Background(), progress.FileCheckpoints{Dir: *dir}, *name)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	report.Write(os.Stdout, st, *list)
}
