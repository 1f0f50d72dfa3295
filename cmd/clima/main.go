// Command clima ingests current weather observations for cities from a batch
// queue and stores the latest temperature per city.
package main

func main() {
	Execute()
}
