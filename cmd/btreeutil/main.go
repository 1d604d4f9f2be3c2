package main

import "github.com/freyjadb/btreeengine/cmd/btreeutil/cmd"

func main() {
	cmd.Execute()
}
