package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"torrentcore/torrent"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-out dir] <path-to-torrent-file>\n", os.Args[0])
		flag.PrintDefaults()
	}

	outputDir := flag.String("out", ".", "directory to write downloaded files into")
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	path := flag.Arg(0)

	if err := torrent.Download(path, *outputDir); err != nil {
		log.Fatalf("[FAIL]\t%v\n", err)
	}
}
