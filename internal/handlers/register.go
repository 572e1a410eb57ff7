package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mpetrenko/taskmanager/internal/models"
	"github.com/mpetrenko/taskmanager/internal/tasks"
	"golang.org/x/crypto/bcrypt"
)

type registerInput struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendError(w, "Use POST method", http.StatusMethodNotAllowed)
		return
	}

	clientIP := r.RemoteAddr
	if h.RateLimiter != nil && !h.RateLimiter.Allow(clientIP) {
		log.Printf("Rate limit exceeded for IP: %s", clientIP)
		sendError(w, "Too many register attempts. Please try again later.", http.StatusTooManyRequests)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB
	var input registerInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		sendError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	if verr := validateRegisterInput(&input); verr != nil {
		sendValidationError(w, verr)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("Error hashing password: %v", err)
		sendError(w, "Cannot hash password", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	now := h.now()
	user := &models.User{
		ID:           uuid.New(),
		Username:     input.Username,
		Email:        input.Email,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.UserRepo.Create(ctx, user); err != nil {
		log.Printf("Error creating user %s: %v", user.Username, err)
		sendError(w, "Cannot save user (username may be taken)", http.StatusBadRequest)
		return
	}

	// every account starts with a default preferences row
	if err := h.PrefsRepo.Create(ctx, models.DefaultPreferences(user.ID, now)); err != nil {
		log.Printf("Error creating preferences for %s: %v", user.Username, err)
		sendError(w, "Cannot save user", http.StatusInternalServerError)
		return
	}

	access, refresh, err := issueTokenPair(user.ID.String(), now)
	if err != nil {
		log.Printf("Error generating tokens: %v", err)
		sendError(w, "Cannot create token", http.StatusInternalServerError)
		return
	}

	log.Printf("User registered: %s", user.Username)
	sendJSON(w, http.StatusCreated, map[string]any{
		"user":    user,
		"access":  access,
		"refresh": refresh,
		"message": "User registered successfully",
	})
}

func validateRegisterInput(input *registerInput) *tasks.ValidationError {
	verr := &tasks.ValidationError{Fields: map[string]string{}}

	input.Username = strings.TrimSpace(input.Username)
	if input.Username == "" {
		verr.Fields["username"] = "username is required"
	} else if len(input.Username) > 150 {
		verr.Fields["username"] = "username must be at most 150 characters"
	}
	if !isValidEmail(input.Email) {
		verr.Fields["email"] = "a valid email is required"
	}
	if len(input.Password) < 8 {
		verr.Fields["password"] = "password must be at least 8 characters"
	} else if input.Password != input.Password2 {
		verr.Fields["password"] = "password fields didn't match"
	}

	if len(verr.Fields) == 0 {
		return nil
	}
	return verr
}

func isValidEmail(email string) bool {
	const emailRegex = `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	re := regexp.MustCompile(emailRegex)
	return re.MatchString(email)
}
