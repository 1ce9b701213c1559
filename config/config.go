package config

import (
	"log"

	"github.com/joho/godotenv"
)

// LoadEnv 本地开发读 .env；容器里直接用环境变量
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, using process environment")
	}
}
