package main

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// ExportFileName is the attachment name of the export endpoint.
const ExportFileName = "books.json"

// sendError logs the failure and answers with the status matching err.
func (api *APIHandler) sendError(w http.ResponseWriter, r *http.Request, message string, data interface{}, err error, fields ...zap.Field) {
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	status := StatusForError(err)
	fields = append(fields, zap.String("request.id", requestID), zap.Int("response.status", status), zap.Error(err))
	api.logger.Error(message, fields...)
	errResp := NewAPIError(requestID, status, message, data)
	if werr := WriteErrorResponse(r.Context(), w, errResp); werr != nil {
		api.logger.Error("failed to send error response", zap.String("request.id", requestID), zap.Error(werr))
	}
}

func (api *APIHandler) sendResponse(w http.ResponseWriter, r *http.Request, status int, message string, total *int, data interface{}) {
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	resp := GenericResponse(requestID, status, message, total, data)
	if err := WriteResponse(r.Context(), w, resp); err != nil {
		api.logger.Error("failed to send response", zap.String("request.id", requestID), zap.Error(err))
	}
}

// CreateBook validates the posted record and appends it to the catalog.
func (api *APIHandler) CreateBook(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	rec, err := DecodeBookRecordRequestBody(r)
	if err != nil {
		api.sendError(w, r, "failed to create the book", EmptyData, &DeserializationError{Source: "request", Err: err})
		return
	}

	book, err := api.catalogService.Add(r.Context(), rec)
	if err != nil {
		api.sendError(w, r, "failed to create the book", err.Error(), err)
		return
	}
	api.logger.Info("success to create book",
		zap.String("book.uuid", book.UUID),
		zap.String("request.id", GetValueFromContext(r.Context(), RequestIDContextKey)),
	)
	api.sendResponse(w, r, http.StatusCreated, "Book created successfully.", nil, book)
}

// GetAllBooks lists the catalog. The genre query narrows the list and
// the title query returns the first matching book.
func (api *APIHandler) GetAllBooks(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	q := r.URL.Query()
	if q.Has("title") {
		book, err := api.catalogService.FindByTitle(r.Context(), q.Get("title"))
		if err != nil {
			api.sendError(w, r, "failed to find book by title", EmptyData, err, zap.String("book.title", q.Get("title")))
			return
		}
		api.sendResponse(w, r, http.StatusOK, "Book fetched successfully.", nil, book)
		return
	}

	var books []Book
	var err error
	if q.Has("genre") {
		books, err = api.catalogService.FilterByGenre(r.Context(), q.Get("genre"))
	} else {
		books, err = api.catalogService.GetAll(r.Context())
	}
	if err != nil {
		api.sendError(w, r, "failed to get all books", []Book{}, err)
		return
	}
	total := len(books)
	api.sendResponse(w, r, http.StatusOK, "All books fetched successfully.", &total, books)
}

func (api *APIHandler) GetOneBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	book, err := api.catalogService.GetOne(r.Context(), id)
	if err != nil {
		api.sendError(w, r, "failed to get the book", EmptyData, err, zap.String("book.uuid", id))
		return
	}
	api.sendResponse(w, r, http.StatusOK, "Book fetched successfully.", nil, book)
}

// UpdateBook replaces the book with the posted record. The uuid of the
// path wins over any uuid of the body.
func (api *APIHandler) UpdateBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	rec, err := DecodeBookRecordRequestBody(r)
	if err != nil {
		api.sendError(w, r, "failed to update the book", EmptyData, &DeserializationError{Source: "request", Err: err}, zap.String("book.uuid", id))
		return
	}

	book, err := api.catalogService.Update(r.Context(), id, rec)
	if err != nil {
		api.sendError(w, r, "failed to update the book", err.Error(), err, zap.String("book.uuid", id))
		return
	}
	api.logger.Info("success to update book",
		zap.String("book.uuid", id),
		zap.String("request.id", GetValueFromContext(r.Context(), RequestIDContextKey)),
	)
	api.sendResponse(w, r, http.StatusOK, "Book updated successfully.", nil, book)
}

func (api *APIHandler) DeleteOneBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if err := api.catalogService.Delete(r.Context(), id); err != nil {
		api.sendError(w, r, "failed to delete the book", EmptyData, err, zap.String("book.uuid", id))
		return
	}
	api.logger.Info("success to delete book",
		zap.String("book.uuid", id),
		zap.String("request.id", GetValueFromContext(r.Context(), RequestIDContextKey)),
	)
	api.sendResponse(w, r, http.StatusOK, "Book deleted successfully.", nil, EmptyData)
}

// SortBooks reorders the stored catalog. Unknown keys answer sorted=false.
func (api *APIHandler) SortBooks(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	key := ps.ByName("key")
	sorted, err := api.catalogService.SortBy(r.Context(), key)
	if err != nil {
		api.sendError(w, r, "failed to sort books", EmptyData, err, zap.String("catalog.sort", key))
		return
	}
	message := "Books sorted successfully."
	if !sorted {
		message = "Unknown sort key. Nothing changed."
	}
	api.sendResponse(w, r, http.StatusOK, message, nil, map[string]bool{"sorted": sorted})
}

// ExportBooks sends the catalog as a books.json attachment.
func (api *APIHandler) ExportBooks(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	data, err := api.catalogService.Export(r.Context())
	if err != nil {
		api.sendError(w, r, "failed to export books", EmptyData, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+ExportFileName+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err = w.Write(data); err != nil {
		api.logger.Error("failed to send export", zap.String("request.id", GetValueFromContext(r.Context(), RequestIDContextKey)), zap.Error(err))
	}
}

// ImportBooks replaces the catalog with the posted JSON array.
func (api *APIHandler) ImportBooks(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	data, err := ReadRequestBody(r)
	if err != nil {
		api.sendError(w, r, "failed to import books", EmptyData, &DeserializationError{Source: "request", Err: err})
		return
	}
	if !json.Valid(data) {
		api.sendError(w, r, "failed to import books", EmptyData, &DeserializationError{Source: "import", Err: errInvalidJSON})
		return
	}

	report, err := api.catalogService.Import(r.Context(), data)
	if err != nil {
		api.sendError(w, r, "failed to import books", report, err)
		return
	}
	api.sendResponse(w, r, http.StatusOK, "Books imported successfully.", nil, report)
}
