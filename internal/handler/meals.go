package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"mealcheck/internal/apperr"
	"mealcheck/internal/meal"
)

// multipart framing allowance on top of the photo itself
const formOverhead = 64 << 10

// submissionView is a record with its resolved image URL.
type submissionView struct {
	meal.Submission
	ImageURL       string `json:"image_url,omitempty"`
	ImageAvailable bool   `json:"image_available"`
}

type dayView struct {
	Date       string          `json:"date"`
	Lunch      *submissionView `json:"lunch"`
	Dinner     *submissionView `json:"dinner"`
	Completion meal.Completion `json:"completion"`
	Color      string          `json:"color"`
}

func (h *Handler) withURL(s meal.Submission) submissionView {
	u, ok := h.Meals.ImageURL(s)
	return submissionView{Submission: s, ImageURL: u, ImageAvailable: ok}
}

func (h *Handler) viewDay(v meal.DayView) dayView {
	out := dayView{Date: v.Date, Completion: v.Completion, Color: v.Completion.Color()}
	if v.Lunch != nil {
		s := h.withURL(*v.Lunch)
		out.Lunch = &s
	}
	if v.Dinner != nil {
		s := h.withURL(*v.Dinner)
		out.Dinner = &s
	}
	return out
}

func (h *Handler) today(c *gin.Context) {
	p := mustProfile(c)
	view, err := h.Meals.TodayFor(c.Request.Context(), p.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.viewDay(view))
}

// submit takes the multipart "photo" field. The athlete is always the
// signed-in profile.
func (h *Handler) submit(c *gin.Context) {
	p := mustProfile(c)
	if h.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes+formOverhead)
	}
	file, _, err := c.Request.FormFile("photo")
	if err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.As(err, &tooBig):
			fail(c, apperr.Invalid("photo is larger than the upload limit"))
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			fail(c, apperr.MissingInput("no file supplied"))
		default:
			fail(c, apperr.Invalid("malformed upload: "+err.Error()))
		}
		return
	}
	defer file.Close()

	src := io.Reader(file)
	if h.MaxUploadBytes > 0 {
		src = io.LimitReader(file, h.MaxUploadBytes+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		fail(c, apperr.Invalid("read photo: "+err.Error()))
		return
	}
	if h.MaxUploadBytes > 0 && int64(len(data)) > h.MaxUploadBytes {
		fail(c, apperr.Invalid("photo is larger than the upload limit"))
		return
	}
	contentType := ""
	if len(data) > 0 {
		contentType = http.DetectContentType(data)
		if !strings.HasPrefix(contentType, "image/") {
			fail(c, apperr.Invalid("photo must be an image, got "+contentType))
			return
		}
	}

	receipt, err := h.Meals.Submit(c.Request.Context(), meal.Upload{
		AthleteID:   p.ID,
		Meal:        c.Param("meal_type"),
		ContentType: contentType,
		Data:        data,
	})
	if err != nil {
		fail(c, err)
		return
	}
	status := http.StatusCreated
	if receipt.Replaced {
		status = http.StatusOK
	}
	c.JSON(status, receipt)
}
