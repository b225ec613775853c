// Command sasmux plays, inspects and mixes audio through the sasmux engine.
package main

func main() {
	execute()
}
