package storage

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Cloudinary stores photos through the Cloudinary REST API. Keys become
// public ids under Folder and uploads overwrite in place.
type Cloudinary struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
	APIBase   string
	CDNBase   string
	HTTP      *http.Client
	now       func() time.Time
}

// NewCloudinary creates a Cloudinary backend.
func NewCloudinary(cloudName, apiKey, apiSecret, folder string) *Cloudinary {
	return &Cloudinary{
		CloudName: cloudName,
		APIKey:    apiKey,
		APISecret: apiSecret,
		Folder:    folder,
		APIBase:   "https://api.cloudinary.com",
		CDNBase:   "https://res.cloudinary.com",
		HTTP:      &http.Client{Timeout: 30 * time.Second},
		now:       time.Now,
	}
}

type cloudinaryUpload struct {
	PublicID  string `json:"public_id"`
	Version   int64  `json:"version"`
	SecureURL string `json:"secure_url"`
	Bytes     int64  `json:"bytes"`
}

func (c *Cloudinary) publicID(key string) string {
	if c.Folder == "" {
		return key
	}
	return strings.TrimSuffix(c.Folder, "/") + "/" + key
}

// Put uploads data as the image for key, replacing any previous bytes.
func (c *Cloudinary) Put(ctx context.Context, key string, data []byte, contentType string) (Object, error) {
	if key == "" {
		return Object{}, ErrEmptyKey
	}
	params := map[string]string{
		"timestamp":  strconv.FormatInt(c.now().Unix(), 10),
		"api_key":    c.APIKey,
		"public_id":  c.publicID(key),
		"overwrite":  "true",
		"invalidate": "true",
	}
	params["signature"] = c.sign(params)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range params {
		_ = w.WriteField(k, v)
	}
	part, err := w.CreateFormFile("file", path.Base(key))
	if err != nil {
		return Object{}, fmt.Errorf("cloudinary: create form file failed: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(data)); err != nil {
		return Object{}, fmt.Errorf("cloudinary: write file failed: %w", err)
	}
	w.Close()

	body, err := c.post(ctx, "upload", w.FormDataContentType(), &buf)
	if err != nil {
		return Object{}, err
	}
	var result cloudinaryUpload
	if err := json.Unmarshal(body, &result); err != nil {
		return Object{}, fmt.Errorf("cloudinary: decode response failed: %w", err)
	}
	return Object{Key: key, Version: strconv.FormatInt(result.Version, 10), Size: result.Bytes}, nil
}

// Delete destroys the image stored under key. A missing image is not an error.
func (c *Cloudinary) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	params := map[string]string{
		"timestamp":  strconv.FormatInt(c.now().Unix(), 10),
		"api_key":    c.APIKey,
		"public_id":  c.publicID(key),
		"invalidate": "true",
	}
	params["signature"] = c.sign(params)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range params {
		_ = w.WriteField(k, v)
	}
	w.Close()

	body, err := c.post(ctx, "destroy", w.FormDataContentType(), &buf)
	if err != nil {
		return err
	}
	var out struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return fmt.Errorf("cloudinary: decode response failed: %w", err)
	}
	if out.Result != "ok" && out.Result != "not found" {
		return fmt.Errorf("cloudinary: destroy %s: %s", key, out.Result)
	}
	return nil
}

// URL returns the versioned delivery URL for key.
func (c *Cloudinary) URL(key, version string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	if version == "" {
		return "", ErrNoVersion
	}
	return fmt.Sprintf("%s/%s/image/upload/v%s/%s", c.CDNBase, c.CloudName, version, c.publicID(key)), nil
}

func (c *Cloudinary) post(ctx context.Context, action, contentType string, body io.Reader) ([]byte, error) {
	url := fmt.Sprintf("%s/v1_1/%s/image/%s", c.APIBase, c.CloudName, action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: create request failed: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: request failed: %w", err)
	}
	defer resp.Body.Close()

	out, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("cloudinary: %s failed (%d): %s", action, resp.StatusCode, string(out))
	}
	return out, nil
}

// sign computes the Cloudinary API signature from the given params.
// api_key and file are never signed.
func (c *Cloudinary) sign(params map[string]string) string {
	excludeKeys := map[string]bool{"api_key": true, "file": true, "resource_type": true}

	pairs := make([]string, 0, len(params))
	for k, v := range params {
		if !excludeKeys[k] && v != "" {
			pairs = append(pairs, k+"="+v)
		}
	}
	sort.Strings(pairs)

	payload := strings.Join(pairs, "&") + c.APISecret
	h := sha1.New()
	h.Write([]byte(payload))
	return fmt.Sprintf("%x", h.Sum(nil))
}
