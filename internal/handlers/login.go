package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	accessTokenTTL  = 1 * time.Hour
	refreshTokenTTL = 7 * 24 * time.Hour
)

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendError(w, "Use POST method for login", http.StatusMethodNotAllowed)
		return
	}

	clientIP := r.RemoteAddr
	if h.RateLimiter != nil && !h.RateLimiter.Allow(clientIP) {
		log.Printf("Rate limit exceeded for IP: %s", clientIP)
		sendError(w, "Too many login attempts. Please try again later.", http.StatusTooManyRequests)
		return
	}

	var input struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		sendError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if input.Username == "" || input.Password == "" {
		sendError(w, "username and password are required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user, err := h.UserRepo.GetByUsername(ctx, input.Username)
	if err != nil {
		log.Printf("Error retrieving user %s: %v", input.Username, err)
		sendError(w, "Invalid username or password", http.StatusUnauthorized)
		return
	}
	if err := bcrypt.CompareHashAndPassword(
		[]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		log.Printf("Invalid password for user: %s", input.Username)
		sendError(w, "Invalid username or password", http.StatusUnauthorized)
		return
	}

	access, refresh, err := issueTokenPair(user.ID.String(), h.now())
	if err != nil {
		log.Printf("Error generating tokens: %v", err)
		sendError(w, "Cannot create token", http.StatusInternalServerError)
		return
	}

	log.Printf("User logged in: %s", user.Username)
	sendJSON(w, http.StatusOK, map[string]any{
		"user":    user,
		"access":  access,
		"refresh": refresh,
		"message": "Login successful",
	})
}

// Refresh exchanges a valid refresh token for a fresh access token.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendError(w, "Use POST method", http.StatusMethodNotAllowed)
		return
	}

	var input struct {
		Refresh string `json:"refresh"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.Refresh == "" {
		sendError(w, "refresh token is required", http.StatusBadRequest)
		return
	}

	token, err := jwt.Parse(input.Refresh, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(os.Getenv("JWT_SECRET")), nil
	})
	if err != nil || !token.Valid {
		sendError(w, "Invalid refresh token", http.StatusUnauthorized)
		return
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims["token_type"] != "refresh" {
		sendError(w, "Invalid refresh token", http.StatusUnauthorized)
		return
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		sendError(w, "Invalid refresh token", http.StatusUnauthorized)
		return
	}

	access, err := signToken(sub, "access", h.now(), accessTokenTTL)
	if err != nil {
		log.Printf("Error generating token: %v", err)
		sendError(w, "Cannot create token", http.StatusInternalServerError)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"access": access})
}

func issueTokenPair(sub string, now time.Time) (access, refresh string, err error) {
	access, err = signToken(sub, "access", now, accessTokenTTL)
	if err != nil {
		return "", "", err
	}
	refresh, err = signToken(sub, "refresh", now, refreshTokenTTL)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func signToken(sub, tokenType string, now time.Time, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":        sub,
		"token_type": tokenType,
		"exp":        now.Add(ttl).Unix(),
		"iat":        now.Unix(),
	})

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return "", fmt.Errorf("JWT_SECRET environment variable is not set")
	}

	signed, err := token.SignedString([]byte(jwtSecret))
	if err != nil {
		return "", fmt.Errorf("error signing token: %w", err)
	}
	return signed, nil
}
