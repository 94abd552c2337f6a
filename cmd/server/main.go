package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"useraccounts/internal/app"
)

// @title           User Accounts API
// @version         1.0
// @description     Регистрация, активация, токены и управление профилем.
// @BasePath        /api
// @securityDefinitions.apikey  TokenAuth
// @in                          header
// @name                        Authorization
func main() {
	if len(os.Args) > 1 && os.Args[1] == "createsuperuser" {
		createSuperuser(os.Args[2:])
		return
	}
	app.Run()
}

func createSuperuser(args []string) {
	fs := flag.NewFlagSet("createsuperuser", flag.ExitOnError)
	email := fs.String("email", "", "superuser email")
	password := fs.String("password", "", "superuser password")
	_ = fs.Parse(args)

	if *email == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "usage: server createsuperuser -email <email> -password <password>")
		os.Exit(2)
	}
	if err := app.CreateSuperuser(*email, *password); err != nil {
		log.Fatalf("create superuser: %v", err)
	}
}
