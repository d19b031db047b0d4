package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/form3tech-oss/jwt-go"
	"github.com/inkwell-app/inkwell/backend/models"
	"github.com/inkwell-app/inkwell/backend/mood"
	"github.com/zalando/go-keyring"
)

// jwtSigningKey is used to verify pasted API tokens before storing them.
var jwtSigningKey string

// KeyringKey is used to store and retrieve the API token from the system keyring.
var KeyringKey string

// ServerURL is the URL of the server the client is connecting to.
var ServerURL string

// client is the HTTP client used to make requests to the server.
var client = &http.Client{}

// KeyringService is the name of the service in the system keyring where the
// API token is stored.
const KeyringService = "Inkwell"

// InitClient initializes the server URL, signing key and keyring key.
// This function must be called before using any other functions in the package.
func InitClient(serverURL, signingKey, tokenKey string) {
	ServerURL = serverURL
	jwtSigningKey = signingKey
	KeyringKey = tokenKey
}

// decodeJWT decodes an API token and returns the claims contained within it.
// Returns the claims if the token is valid, else an error.
func decodeJWT(tokenStr string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(jwtSigningKey), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// StoreToken validates a pasted API token and saves it in the system keyring.
func StoreToken(token string) error {
	if _, err := decodeJWT(token); err != nil {
		return fmt.Errorf("token rejected: %w", err)
	}
	return keyring.Set(KeyringService, KeyringKey, token)
}

// ClearToken removes the stored API token from the system keyring.
func ClearToken() error {
	return keyring.Delete(KeyringService, KeyringKey)
}

// HasToken reports whether a token is currently stored.
func HasToken() bool {
	token, err := keyring.Get(KeyringService, KeyringKey)
	return err == nil && token != ""
}

// doRequest performs an authenticated request and decodes the JSON response
// into out when it is non-nil.
func doRequest(method, path string, payload interface{}, out interface{}) error {
	token, err := keyring.Get(KeyringService, KeyringKey)
	if err != nil {
		return errors.New("no API token stored, run 'token' first")
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, ServerURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error != "" {
			return errors.New(apiErr.Error)
		}
		return fmt.Errorf("server returned %s", resp.Status)
	}

	if out != nil && len(data) > 0 {
		return json.Unmarshal(data, out)
	}
	return nil
}

// GetStreak fetches the caller's streak record.
func GetStreak() (*models.StreakRecord, error) {
	var record models.StreakRecord
	if err := doRequest(http.MethodGet, "/streak", nil, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// UpsertMood records a mood point, today by default.
func UpsertMood(in mood.UpsertInput) (*models.MoodPoint, error) {
	var point models.MoodPoint
	if err := doRequest(http.MethodPost, "/mood-points", in, &point); err != nil {
		return nil, err
	}
	return &point, nil
}

// GetMoodRange fetches the mood points of the trailing week (or the given
// bounds).
func GetMoodRange(from, to string) (*mood.RangeResult, error) {
	path := "/mood-points"
	sep := "?"
	if from != "" {
		path += sep + "from=" + from
		sep = "&"
	}
	if to != "" {
		path += sep + "to=" + to
	}

	var result mood.RangeResult
	if err := doRequest(http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RecomputeDay asks the server to re-derive one day's mood point from its
// entry ratings.
func RecomputeDay(day string) (*models.MoodPoint, error) {
	payload := map[string]string{"day": day}
	var point models.MoodPoint
	if err := doRequest(http.MethodPost, "/mood-points/recompute-day", payload, &point); err != nil {
		return nil, err
	}
	return &point, nil
}
