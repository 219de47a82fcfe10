// Package main is the entry point for maxrange.
//
//	@title			maxrange API
//	@version		1.0
//	@description	Per-device maximum contiguous trip distance by month and by year.
//
//	@contact.name	maxrange maintainers
//	@contact.url	https://github.com/artpar/maxrange/issues
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@BasePath		/
package main

func main() {
	Execute()
}
