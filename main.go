// Command stockwatcher watches the Grow a Garden seed shop.
package main

import "github.com/gardenbot/stock-watcher/cmd"

func main() {
	cmd.Execute()
}
