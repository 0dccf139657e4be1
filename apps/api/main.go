package main

import (
	"flag"
	"log"
)

func main() {
	useDig := flag.Bool("dig", false, "wire dependencies with the dig container")
	flag.Parse()

	if *useDig {
		startWithDig()
		return
	}
	startManual()
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
