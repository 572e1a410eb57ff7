package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/mpetrenko/taskmanager/internal/db"
	"github.com/mpetrenko/taskmanager/internal/handlers"
)

func main() {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			log.Fatalf("Error loading .env file: %v", err)
		}
	}

	validateEnv()
	dbConn := initDB()
	defer func() {
		if err := dbConn.Close(); err != nil {
			log.Printf("Error closing database connection: %v", err)
		}
	}()

	mux := initHandlers(dbConn)
	server := initServer(mux)
	startServer(server)
}

func validateEnv() {
	requiredEnvVars := []string{
		"POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_DB",
		"POSTGRES_HOST", "POSTGRES_PORT", "SERVER_PORT", "MEDIA_DIR",
	}
	for _, env := range requiredEnvVars {
		if os.Getenv(env) == "" {
			log.Fatalf("Environment variable %s must be set", env)
		}
	}
	if len(os.Getenv("JWT_SECRET")) < 32 {
		log.Fatal("JWT_SECRET must be at least 32 characters")
	}
}

func initDB() *sql.DB {
	user := os.Getenv("POSTGRES_USER")
	password := os.Getenv("POSTGRES_PASSWORD")
	dbname := os.Getenv("POSTGRES_DB")
	port := os.Getenv("POSTGRES_PORT")
	host := os.Getenv("POSTGRES_HOST")

	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		host, user, password, dbname, port)

	dbConn, err := db.Connect("postgres", dsn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	return dbConn
}

func initHandlers(dbConn *sql.DB) *http.ServeMux {
	handler := &handlers.Handler{
		UserRepo:  db.NewUserRepository(dbConn),
		TaskRepo:  db.NewTaskRepository(dbConn),
		PrefsRepo: db.NewPreferencesRepository(dbConn),
		// allow max 5 register/login attempts per 15 minutes from the same IP
		RateLimiter: handlers.NewRateLimiter(5, 15*time.Minute),
		WSHub:       handlers.NewWSHub(),
		MediaDir:    os.Getenv("MEDIA_DIR"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/register", handler.Register)
	mux.HandleFunc("/auth/login", handler.Login)
	mux.HandleFunc("/auth/refresh", handler.Refresh)

	mux.HandleFunc("/tasks", handler.AuthMiddleware(handler.HandleTasks))
	mux.HandleFunc("/tasks/summary", handler.AuthMiddleware(handler.HandleSummary))
	mux.HandleFunc("/tasks/analytics", handler.AuthMiddleware(handler.HandleAnalytics))
	mux.HandleFunc("/tasks/calendar", handler.AuthMiddleware(handler.HandleCalendar))
	mux.HandleFunc("/tasks/digest", handler.AuthMiddleware(handler.HandleDigest))
	mux.HandleFunc("/tasks/", handler.AuthMiddleware(handler.HandleTaskByID))

	mux.HandleFunc("/account/profile", handler.AuthMiddleware(handler.HandleProfile))
	mux.HandleFunc("/account/preferences", handler.AuthMiddleware(handler.HandlePreferences))
	mux.HandleFunc("/account/profile-image", handler.AuthMiddleware(handler.HandleProfileImage))
	mux.HandleFunc("/account", handler.AuthMiddleware(handler.HandleDeleteAccount))

	mux.HandleFunc("/ws", handler.AuthMiddleware(handler.HandleWebSocket))

	mux.Handle("/media/", http.StripPrefix("/media/",
		http.FileServer(http.Dir(os.Getenv("MEDIA_DIR")))))

	return mux
}

func initServer(mux *http.ServeMux) *http.Server {
	return &http.Server{
		Addr:    ":" + os.Getenv("SERVER_PORT"),
		Handler: mux,
	}
}

func startServer(server *http.Server) {
	log.Printf("Starting server on %s", server.Addr)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}
	log.Println("Server stopped")
}
