// Command deepresearch plans, researches, verifies and reports on a goal,
// persisting every step so interrupted jobs can be resumed.
package main

func main() {
	Execute()
}
