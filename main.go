package main

import "plaid-sync/cmd"

func main() {
	cmd.Execute()
}
