package httpapi

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/sinifplanim/internal/roster"
)

type createClassRequest struct {
	Name string `json:"name" validate:"required,max=80"`
}

type addStudentsRequest struct {
	Students []roster.StudentInput `json:"students" validate:"required,min=1,max=500"`
}

type loginRequest struct {
	ClassCode   string `json:"classCode" validate:"max=32"`
	StudentCode string `json:"studentCode" validate:"max=32"`
}

func (s *Server) handleListClasses(w http.ResponseWriter, r *http.Request) {
	classes, err := s.roster.Classes(r.Context(), teacherFrom(r.Context()))
	if err != nil {
		fail(w, r, err, "Sınıflar yüklenirken bir hata oluştu.")
		return
	}
	writeJSON(w, http.StatusOK, classes)
}

func (s *Server) handleCreateClass(w http.ResponseWriter, r *http.Request) {
	var req createClassRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := s.roster.CreateClass(r.Context(), teacherFrom(r.Context()), req.Name)
	if err != nil {
		fail(w, r, err, "Sınıf eklenirken bir hata oluştu.")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleDeleteClass(w http.ResponseWriter, r *http.Request) {
	if err := s.roster.DeleteClass(r.Context(), teacherFrom(r.Context()), r.PathValue("classID")); err != nil {
		fail(w, r, err, "Sınıf silinirken bir hata oluştu.")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := s.roster.Students(r.Context(), teacherFrom(r.Context()), r.PathValue("classID"))
	if err != nil {
		fail(w, r, err, "Öğrenciler yüklenirken bir hata oluştu.")
		return
	}
	writeJSON(w, http.StatusOK, students)
}

func (s *Server) handleAddStudents(w http.ResponseWriter, r *http.Request) {
	var req addStudentsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	added, err := s.roster.AddStudents(r.Context(), teacherFrom(r.Context()), r.PathValue("classID"), req.Students)
	if err != nil {
		fail(w, r, err, "Öğrenciler eklenirken bir hata oluştu.")
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

func (s *Server) handleRemoveStudent(w http.ResponseWriter, r *http.Request) {
	err := s.roster.RemoveStudent(r.Context(), teacherFrom(r.Context()), r.PathValue("classID"), r.PathValue("studentID"))
	if err != nil {
		fail(w, r, err, "Öğrenci silinirken bir hata oluştu.")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExportStudents writes the class list with sign-in codes as a
// workbook the teacher can print and hand out.
func (s *Server) handleExportStudents(w http.ResponseWriter, r *http.Request) {
	teacherID, classID := teacherFrom(r.Context()), r.PathValue("classID")
	classes, err := s.roster.Classes(r.Context(), teacherID)
	if err != nil {
		fail(w, r, err, "")
		return
	}
	var class *roster.Class
	for i := range classes {
		if classes[i].ID == classID {
			class = &classes[i]
			break
		}
	}
	if class == nil {
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	}
	students, err := s.roster.Students(r.Context(), teacherID, classID)
	if err != nil {
		fail(w, r, err, "")
		return
	}

	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Öğrenciler"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		fail(w, r, err, "")
		return
	}
	f.SetCellValue(sheet, "A1", class.Name)
	f.SetCellValue(sheet, "C1", "Sınıf kodu: "+class.ClassCode)
	for i, h := range []string{"No", "Adı Soyadı", "Öğrenci kodu"} {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		f.SetCellValue(sheet, cell, h)
	}
	for i, st := range students {
		row := i + 3
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), st.Number)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), st.Name)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), st.StudentCode)
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=sinif_%s.xlsx", class.ClassCode))
	if err := f.Write(w); err != nil {
		slog.Warn("student list export failed", "class_id", classID, "error", err)
	}
}

// handleParseStudentList reads an uploaded class list (multipart field
// "file") and returns the classes found in it without saving anything.
func (s *Server) handleParseStudentList(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+64<<10)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Dosya yüklenemedi.")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Dosya yüklenemedi.")
		return
	}
	if len(data) > maxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "Dosya çok büyük.")
		return
	}

	res, err := s.assist.ParseStudentList(r.Context(), teacherFrom(r.Context()), header.Filename, data)
	if err != nil {
		fail(w, r, err, "Dosya ayrıştırılırken bir hata oluştu.")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStudentLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sess, err := s.roster.Login(r.Context(), req.ClassCode, req.StudentCode)
	if errors.Is(err, roster.ErrInvalidCode) {
		writeError(w, http.StatusUnauthorized, "Sınıf kodu veya öğrenci kodu hatalı.")
		return
	}
	if err != nil {
		fail(w, r, err, "Giriş yapılırken beklenmedik bir sunucu hatası oluştu.")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleStudentLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.roster.Logout(r.Context(), bearerToken(r.Header.Get("Authorization"))); err != nil {
		fail(w, r, err, "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStudentMe(w http.ResponseWriter, r *http.Request) {
	sess, _ := roster.SessionFrom(r.Context())
	writeJSON(w, http.StatusOK, sess)
}
