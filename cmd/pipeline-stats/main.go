package main

import "github.com/davarch/pipeline-stats/cmd/pipeline-stats/cli"

func main() {
	cli.Execute()
}
