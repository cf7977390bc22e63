/*
	Copyright 2023 Markus Papenbrock
*/

package main

import "github.com/mpapenbr/itslogin/cmd"

func main() {
	cmd.Execute()
}
