package main

import "github.com/renthouse/ms-go-payments/cmd"

func main() {
	cmd.Execute()
}
