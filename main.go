package main

import "github.com/secai/secai/cmd/secai"

func main() { secai.Execute() }
