package main

import "github.com/classtrack/attendance/cmd"

func main() {
	cmd.Execute()
}
