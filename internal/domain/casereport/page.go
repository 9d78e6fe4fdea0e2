package casereport

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strconv"

	"cattle-case-report/internal/ports/casesapi"
)

//go:embed templates/form.html
var templatesFS embed.FS

var pageTmpl = template.Must(
	template.New("form.html").
		Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
		ParseFS(templatesFS, "templates/form.html"),
)

type pageData struct {
	State      FormState
	Diseases   []diseaseView
	Notices    []noticeView
	Banners    []noticeView
	Submitting bool
}

type diseaseView struct {
	ID      int64
	Name    string
	DOMID   string
	Checked bool
}

type noticeView struct {
	Class   string
	Message string
}

func buildPage(state FormState, diseases []casesapi.Disease, notices []Notice, submitting bool) pageData {
	d := pageData{State: state, Submitting: submitting}

	for _, ds := range diseases {
		d.Diseases = append(d.Diseases, diseaseView{
			ID:   ds.ID,
			Name: ds.Name,
			// diseaseRadio{id+1}
			DOMID:   fmt.Sprintf("diseaseRadio%d", ds.ID+1),
			Checked: state.SelectedDiseaseID != "" && strconv.FormatInt(ds.ID, 10) == state.SelectedDiseaseID,
		})
	}

	for _, n := range notices {
		switch n.Kind {
		case NoticeWarning:
			// los warnings van como banner, no como toast
			d.Banners = append(d.Banners, noticeView{Class: "alert-warning", Message: n.Message})
		case NoticeSuccess:
			d.Notices = append(d.Notices, noticeView{Class: "alert-success", Message: n.Message})
		default:
			d.Notices = append(d.Notices, noticeView{Class: "alert-danger", Message: n.Message})
		}
	}
	return d
}

func renderPage(w http.ResponseWriter, d pageData) error {
	var buf bytes.Buffer
	if err := pageTmpl.Execute(&buf, d); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, err := buf.WriteTo(w)
	return err
}
