package handler

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"mealcheck/internal/apperr"
	"mealcheck/internal/meal"
	"mealcheck/internal/provision"
	"mealcheck/internal/report"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type athleteView struct {
	meal.AthleteSummary
	Submissions []submissionView `json:"submissions"`
}

type rangeView struct {
	Range    meal.Range    `json:"range"`
	Tally    meal.Tally    `json:"tally"`
	Athletes []athleteView `json:"athletes"`
}

func (h *Handler) viewRange(rep meal.RangeReport) rangeView {
	out := rangeView{Range: rep.Range, Tally: rep.Tally, Athletes: make([]athleteView, 0, len(rep.Athletes))}
	for _, s := range rep.Athletes {
		v := athleteView{AthleteSummary: s, Submissions: make([]submissionView, 0, len(s.Submissions))}
		for _, sub := range s.Submissions {
			v.Submissions = append(v.Submissions, h.withURL(sub))
		}
		out.Athletes = append(out.Athletes, v)
	}
	return out
}

func (h *Handler) athletes(c *gin.Context) {
	roster, err := h.Meals.Athletes(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, roster)
}

func (h *Handler) status(c *gin.Context) {
	rep, err := h.Meals.RangeStatus(c.Request.Context(), c.Query("from"), c.Query("to"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.viewRange(rep))
}

// export re-reads the range and answers with the workbook. The file is
// built in memory first so a failure can still be reported as JSON.
func (h *Handler) export(c *gin.Context) {
	summary := false
	if v := c.Query("summary"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			fail(c, apperr.Invalid("summary must be a boolean"))
			return
		}
		summary = parsed
	}
	rep, err := h.Meals.RangeStatus(c.Request.Context(), c.Query("from"), c.Query("to"))
	if err != nil {
		fail(c, err)
		return
	}
	var buf bytes.Buffer
	if err := report.Write(&buf, rep.Roster, rep.Records, h.Meals.ImageURL, report.Options{Summary: summary}); err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", report.ContentDisposition(report.RangeFilename(rep.Range)))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *Handler) provision(c *gin.Context) {
	var req provision.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.Provisioning("body must be {action, email, password, full_name}"))
		return
	}
	res, err := h.Provision.Handle(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}
