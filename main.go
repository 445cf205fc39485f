package main

import (
	"os"

	"budget/cmd"
)

// @title 预算助手 API
// @version 1.0
// @description 共享预算记账 API：用户、预算、预算共享与消费记录，访问权限由用户与预算的关联决定
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
