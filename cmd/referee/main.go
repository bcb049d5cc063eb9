// Command referee runs a supervisor-routed review of a research abstract.
package main

func main() {
	Execute()
}
