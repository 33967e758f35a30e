// Package main provides the formd command: the Form D dashboard server and a
// one-shot fetch tool.
package main

func main() {
	Execute()
}
