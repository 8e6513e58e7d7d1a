// Command donutctl inspects and exercises the donutloadable SQLite extension.
package main

import "github.com/mesh-intelligence/donutloadable/internal/cli"

func main() {
	cli.Execute()
}
