package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mpetrenko/taskmanager/internal/models"
	"github.com/mpetrenko/taskmanager/internal/tasks"
)

// max accepted profile image size
const maxImageSize = 5 << 20 // 5MB

func (h *Handler) authedUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, _ := r.Context().Value("user_id").(string)
	id, err := uuid.Parse(userID)
	if err != nil {
		sendError(w, "Unauthorized", http.StatusUnauthorized)
		return uuid.Nil, false
	}
	return id, true
}

/*
routes:
- GET /account/profile
- PUT /account/profile (email, first_name, last_name)
*/
func (h *Handler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUser(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user, err := h.UserRepo.GetByID(ctx, userID.String())
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("Failed to load user %s: %v", userID, err)
			sendError(w, "Failed to load profile", http.StatusInternalServerError)
			return
		}
		sendError(w, "User not found", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.sendProfile(ctx, w, user)
	case http.MethodPut, http.MethodPatch:
		h.updateProfile(ctx, w, r, user)
	default:
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) sendProfile(ctx context.Context, w http.ResponseWriter, user *models.User) {
	profile := map[string]any{
		"id":            user.ID,
		"username":      user.Username,
		"email":         user.Email,
		"first_name":    user.FirstName,
		"last_name":     user.LastName,
		"profile_image": nil,
	}
	if prefs, err := h.PrefsRepo.GetOrCreate(ctx, user.ID, h.now()); err == nil && prefs.ProfileImage != "" {
		profile["profile_image"] = "/media/" + prefs.ProfileImage
	}
	sendJSON(w, http.StatusOK, profile)
}

func (h *Handler) updateProfile(ctx context.Context, w http.ResponseWriter, r *http.Request, user *models.User) {
	if !isJSONContentType(r) {
		sendError(w, "Content-Type must be application/json", http.StatusBadRequest)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var input struct {
		Email     *string `json:"email"`
		FirstName *string `json:"first_name"`
		LastName  *string `json:"last_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		sendError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	if input.Email != nil {
		if !isValidEmail(*input.Email) {
			sendValidationError(w, &tasks.ValidationError{
				Fields: map[string]string{"email": "a valid email is required"},
			})
			return
		}
		user.Email = *input.Email
	}
	if input.FirstName != nil {
		user.FirstName = strings.TrimSpace(*input.FirstName)
	}
	if input.LastName != nil {
		user.LastName = strings.TrimSpace(*input.LastName)
	}
	user.UpdatedAt = h.now()

	if err := h.UserRepo.UpdateProfile(ctx, user); err != nil {
		log.Printf("Failed to update profile for %s: %v", user.ID, err)
		sendError(w, "Failed to update profile", http.StatusInternalServerError)
		return
	}
	h.sendProfile(ctx, w, user)
}

/*
routes:
- GET /account/preferences
- PUT /account/preferences (partial update)
*/
func (h *Handler) HandlePreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUser(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	prefs, err := h.PrefsRepo.GetOrCreate(ctx, userID, h.now())
	if err != nil {
		log.Printf("Failed to load preferences for %s: %v", userID, err)
		sendError(w, "Failed to load preferences", http.StatusInternalServerError)
		return
	}

	switch r.Method {
	case http.MethodGet:
		sendJSON(w, http.StatusOK, preferencesResponse(prefs))
	case http.MethodPut, http.MethodPatch:
		h.updatePreferences(ctx, w, r, prefs)
	default:
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) updatePreferences(ctx context.Context, w http.ResponseWriter, r *http.Request, prefs *models.UserPreferences) {
	if !isJSONContentType(r) {
		sendError(w, "Content-Type must be application/json", http.StatusBadRequest)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var input struct {
		EmailNotifications *bool   `json:"email_notifications"`
		TaskReminders      *bool   `json:"task_reminders"`
		DailySummary       *bool   `json:"daily_summary"`
		DarkMode           *bool   `json:"dark_mode"`
		DefaultPriority    *string `json:"default_priority"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		sendError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	if input.EmailNotifications != nil {
		prefs.EmailNotifications = *input.EmailNotifications
	}
	if input.TaskReminders != nil {
		prefs.TaskReminders = *input.TaskReminders
	}
	if input.DailySummary != nil {
		prefs.DailySummary = *input.DailySummary
	}
	if input.DarkMode != nil {
		prefs.DarkMode = *input.DarkMode
	}
	if input.DefaultPriority != nil {
		priority := models.TaskPriority(strings.ToLower(*input.DefaultPriority))
		if !priority.Valid() {
			sendValidationError(w, &tasks.ValidationError{
				Fields: map[string]string{"default_priority": "default_priority must be one of: low, medium, high"},
			})
			return
		}
		prefs.DefaultPriority = priority
	}
	prefs.UpdatedAt = h.now()

	if err := h.PrefsRepo.Update(ctx, prefs); err != nil {
		log.Printf("Failed to update preferences for %s: %v", prefs.UserID, err)
		sendError(w, "Failed to update preferences", http.StatusInternalServerError)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{
		"message":     "Preferences updated successfully",
		"preferences": preferencesResponse(prefs),
	})
}

func preferencesResponse(prefs *models.UserPreferences) map[string]any {
	resp := map[string]any{
		"email_notifications": prefs.EmailNotifications,
		"task_reminders":      prefs.TaskReminders,
		"daily_summary":       prefs.DailySummary,
		"dark_mode":           prefs.DarkMode,
		"default_priority":    prefs.DefaultPriority,
		"profile_image_url":   nil,
	}
	if prefs.ProfileImage != "" {
		resp["profile_image_url"] = "/media/" + prefs.ProfileImage
	}
	return resp
}

/*
routes:
- POST /account/profile-image (multipart, field "profile_image")
- DELETE /account/profile-image
*/
func (h *Handler) HandleProfileImage(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUser(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	prefs, err := h.PrefsRepo.GetOrCreate(ctx, userID, h.now())
	if err != nil {
		log.Printf("Failed to load preferences for %s: %v", userID, err)
		sendError(w, "Failed to load preferences", http.StatusInternalServerError)
		return
	}

	switch r.Method {
	case http.MethodPost:
		h.uploadProfileImage(ctx, w, r, prefs)
	case http.MethodDelete:
		h.deleteProfileImage(ctx, w, prefs)
	default:
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) uploadProfileImage(ctx context.Context, w http.ResponseWriter, r *http.Request, prefs *models.UserPreferences) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageSize)
	if err := r.ParseMultipartForm(maxImageSize); err != nil {
		sendError(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("profile_image")
	if err != nil {
		sendError(w, "No image file provided", http.StatusBadRequest)
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
	default:
		sendError(w, "Unsupported image type", http.StatusBadRequest)
		return
	}

	relPath := filepath.Join("profile_images", prefs.UserID.String()+ext)
	absPath := filepath.Join(h.MediaDir, relPath)
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		log.Printf("Failed to create media dir: %v", err)
		sendError(w, "Failed to store image", http.StatusInternalServerError)
		return
	}

	dst, err := os.Create(absPath)
	if err != nil {
		log.Printf("Failed to create image file: %v", err)
		sendError(w, "Failed to store image", http.StatusInternalServerError)
		return
	}
	defer dst.Close()
	if _, err := io.Copy(dst, file); err != nil {
		log.Printf("Failed to write image file: %v", err)
		sendError(w, "Failed to store image", http.StatusInternalServerError)
		return
	}

	// drop the previous image when the extension changed
	if prefs.ProfileImage != "" && prefs.ProfileImage != relPath {
		_ = os.Remove(filepath.Join(h.MediaDir, prefs.ProfileImage))
	}
	prefs.ProfileImage = relPath
	prefs.UpdatedAt = h.now()
	if err := h.PrefsRepo.Update(ctx, prefs); err != nil {
		log.Printf("Failed to save image path for %s: %v", prefs.UserID, err)
		sendError(w, "Failed to store image", http.StatusInternalServerError)
		return
	}

	sendJSON(w, http.StatusOK, map[string]any{
		"message":           "Profile image uploaded successfully",
		"profile_image_url": "/media/" + relPath,
	})
}

func (h *Handler) deleteProfileImage(ctx context.Context, w http.ResponseWriter, prefs *models.UserPreferences) {
	if prefs.ProfileImage == "" {
		sendError(w, "No profile image to delete", http.StatusNotFound)
		return
	}
	if err := os.Remove(filepath.Join(h.MediaDir, prefs.ProfileImage)); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to remove image file for %s: %v", prefs.UserID, err)
	}
	prefs.ProfileImage = ""
	prefs.UpdatedAt = h.now()
	if err := h.PrefsRepo.Update(ctx, prefs); err != nil {
		log.Printf("Failed to clear image path for %s: %v", prefs.UserID, err)
		sendError(w, "Failed to delete image", http.StatusInternalServerError)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"message": "Profile image deleted successfully"})
}

// DELETE /account - remove the account and everything it owns, atomically.
func (h *Handler) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := h.authedUser(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	user, err := h.UserRepo.GetByID(ctx, userID.String())
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("Failed to load user %s: %v", userID, err)
			sendError(w, "Failed to delete account", http.StatusInternalServerError)
			return
		}
		sendError(w, "User not found", http.StatusNotFound)
		return
	}

	if err := h.UserRepo.DeleteCascade(ctx, userID.String()); err != nil {
		log.Printf("Failed to delete account %s: %v", userID, err)
		sendError(w, "Failed to delete account", http.StatusInternalServerError)
		return
	}

	log.Printf("Account deleted: %s", user.Username)
	sendJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Account %s has been permanently deleted", user.Username),
	})
}
