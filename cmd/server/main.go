package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"

	"github.com/askloop/askloop/internal/api"
	"github.com/askloop/askloop/internal/db"
	"github.com/askloop/askloop/internal/middleware"
	"github.com/askloop/askloop/internal/services"
	"github.com/askloop/askloop/internal/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("[CONFIG] no .env file loaded: %v", err)
	}

	addr := utils.SafeEnv("ASKLOOP_ADDR", ":8080")
	dbPath := utils.SafeEnv("ASKLOOP_DB_PATH", "./askloop.db")
	apiKey := os.Getenv("ASKLOOP_API_KEY")
	passHash := os.Getenv("ASKLOOP_ADMIN_PASSWORD_HASH")
	transcribeURL := os.Getenv("ASKLOOP_TRANSCRIBE_URL")
	ttsURL := os.Getenv("ASKLOOP_TTS_URL")

	log.Printf("[STARTUP] opening database at %s", dbPath)
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		log.Fatalf("[FATAL] open database: %v", err)
	}
	if err := db.RunMigrations(conn); err != nil {
		log.Fatalf("[FATAL] run migrations: %v", err)
	}
	store, err := db.NewSQLiteStore(conn)
	if err != nil {
		log.Fatalf("[FATAL] init store: %v", err)
	}

	questions := services.NewQuestionService(store)
	responses := services.NewResponseService(store)
	analytics := services.NewAnalyticsService(store)
	auth := services.NewAuthService([]byte(passHash), middleware.SignToken)
	speechTimeout := time.Duration(utils.SafeEnvInt("ASKLOOP_SPEECH_TIMEOUT_SECONDS", 30)) * time.Second
	speech := services.NewSpeechService(&http.Client{Timeout: speechTimeout}, transcribeURL, ttsURL)

	mux := http.NewServeMux()
	api.NewRouter(questions, responses, analytics, auth, speech).Register(mux)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "name": "askloop API"})
	})

	handler := middleware.SecureHeaders(
		middleware.NoStore(
			middleware.CORS(
				middleware.RequireAPIKey(apiKey)(
					middleware.WithAuth(mux)))))

	server := &http.Server{Addr: addr, Handler: handler}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		log.Println("[SHUTDOWN] signal received, draining connections")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("[SHUTDOWN] shutdown error: %v", err)
		}
		if err := conn.Close(); err != nil {
			log.Printf("[SHUTDOWN] close database: %v", err)
		}
	}()

	log.Printf("[STARTUP] askloop server listening on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("[FATAL] server error: %v", err)
	}
}
