package main

import "github.com/longhang2004/content-service/cmd"

func main() {
	cmd.Execute()
}
