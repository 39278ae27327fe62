package main

import "inboxflow/cmd/worker"

func main() {
	worker.Execute()
}
