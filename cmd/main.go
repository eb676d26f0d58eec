// 本文件用于程序启动入口
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "程序退出: %v\n", err)
		os.Exit(1)
	}
}
