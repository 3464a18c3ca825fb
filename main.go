package main

import (
	"github.com/Johnermac/reaptree/sup"
)

func main() {
	// a spawned worker never reaches the CLI
	if sup.IsWorker() {
		sup.WorkerMain()
	}
	sup.Execute()
}
