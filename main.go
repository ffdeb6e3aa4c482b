package main

import "github.com/shieldscan/shieldscan/cmd/shieldscan"

func main() { shieldscan.Execute() }
