package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/erazemk/najdeno/internal/config"
	"github.com/erazemk/najdeno/internal/logging"
)

const usage = `Usage: najdeno [command] [flags]

Commands:
  serve   run the web server (default); creates the database on first run
  init    create the database and admin account, then exit

Flags (each defaults to the environment variable in brackets, which may be
set in a .env file):
  -addr <host:port>        listen address [NAJDENO_ADDR] (default :8080)
  -db <path>               SQLite database path [NAJDENO_DB] (default najdeno.sqlite3)
  -admin <email>           admin email on first run [NAJDENO_ADMIN_EMAIL]
  -log <path>              also append logs to this file [NAJDENO_LOG]
  -log-level <level>       debug, info, warn or error [NAJDENO_LOG_LEVEL]
  -storage <local|s3>      image storage backend [NAJDENO_STORAGE]
  -uploads <dir>           local image directory [NAJDENO_UPLOAD_DIR]
  -s3-endpoint <url>       S3-compatible endpoint [S3_ENDPOINT]
  -s3-bucket <name>        bucket [S3_BUCKET]
  -s3-region <region>      region [S3_REGION]
  -s3-public-url <url>     public URL prefix of the bucket [S3_PUBLIC_URL]
  -secure-cookies          HTTPS-only session cookies [NAJDENO_SECURE_COOKIES]
  -trust-proxy             use X-Forwarded-For for client addresses [NAJDENO_TRUST_PROXY]
  -h, -help                show this help and exit

S3 credentials are read from S3_ACCESS_KEY and S3_SECRET_KEY only.
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if err := config.LoadEnvFile(".env"); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	cmd := "serve"
	if len(args) > 0 && (args[0] == "serve" || args[0] == "init") {
		cmd, args = args[0], args[1:]
	}

	cfg, err := config.Parse(cmd, args, io.Discard)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fmt.Fprint(stdout, usage)
			return 0
		}
		fmt.Fprintf(stderr, "error: %v\n\n%s", err, usage)
		return 1
	}

	closeLog, err := logging.Setup(cfg.LogLevel, cfg.LogPath)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	defer closeLog()

	switch cmd {
	case "init":
		err = initCommand(cfg, stdout)
	default:
		err = serve(cfg, stdout)
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
