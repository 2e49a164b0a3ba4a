package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/cazayus/wshub/internal/domain/properties"
	"github.com/cazayus/wshub/internal/service"
	"github.com/cazayus/wshub/internal/shared/id"
	"github.com/gin-gonic/gin"
)

// maxDocumentSize bounds the body of a document save
const maxDocumentSize = 1 << 20

// DocumentView describes one stored .properties document
type DocumentView struct {
	Path    string              `json:"path"`
	Stamp   uint64              `json:"stamp"`
	Text    string              `json:"text"`
	Problem *properties.Problem `json:"problem"`
}

// ListDocuments lists the documents of a workspace, or describes one when
// the path query parameter is set
func (h *Handlers) ListDocuments(c *gin.Context) {
	ws, err := id.ParseWorkspaceID(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	svc, err := h.documents(c, ws, false)
	if err != nil {
		respondError(c, err)
		return
	}

	path := c.Query("path")
	if path == "" {
		paths := []string{}
		if svc != nil {
			paths = svc.Paths()
		}
		c.JSON(http.StatusOK, gin.H{"workspace": ws.String(), "documents": paths})
		return
	}

	if svc == nil {
		respondError(c, fmt.Errorf("%w: %s", properties.ErrUnknownDocument, path))
		return
	}
	text, stamp, ok := svc.Text(path)
	if !ok {
		respondError(c, fmt.Errorf("%w: %s", properties.ErrUnknownDocument, path))
		return
	}
	problem, err := svc.Inspect(path)
	if err != nil && !errors.Is(err, properties.ErrMalformed) {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, DocumentView{Path: path, Stamp: stamp, Text: text, Problem: problem})
}

// SaveDocument stores the request body as a document of the workspace,
// then runs the save pass for that path over every open workspace
func (h *Handlers) SaveDocument(c *gin.Context) {
	ws, err := id.ParseWorkspaceID(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxDocumentSize))
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		return
	}

	svc, err := h.documents(c, ws, true)
	if err != nil {
		respondError(c, err)
		return
	}
	stamp, err := svc.Put(c.Query("path"), string(body))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{"workspace": ws.String(), "stamp": stamp}
	if h.saver != nil {
		report, err := h.saver.BeforeSave(c.Request.Context(), c.Query("path"))
		resp["report"] = report
		if err != nil {
			resp["error"] = err.Error()
		}
	}
	c.JSON(http.StatusOK, resp)
}

// documents returns the properties service of ws. Without create, a
// workspace whose service is not built yet yields nil.
func (h *Handlers) documents(c *gin.Context, ws id.WorkspaceID, create bool) (*properties.Service, error) {
	if h.hub == nil || h.registry == nil {
		return nil, fmt.Errorf("%w: %s", id.ErrUnknownWorkspace, ws)
	}
	if _, ok := h.hub.State(ws); !ok {
		return nil, fmt.Errorf("%w: %s", id.ErrUnknownWorkspace, ws)
	}

	inst, ok := h.registry.Lookup(ws, properties.Tag)
	if !ok {
		if !create {
			return nil, nil
		}
		if h.catalog == nil {
			return nil, fmt.Errorf("%w: %s", service.ErrUnknownTag, properties.Tag)
		}
		factory, found := h.catalog.Factory(properties.Tag)
		if !found {
			return nil, fmt.Errorf("%w: %s", service.ErrUnknownTag, properties.Tag)
		}
		var err error
		if inst, err = h.registry.GetOrCreate(c.Request.Context(), ws, properties.Tag, factory); err != nil {
			return nil, err
		}
	}

	svc, ok := inst.(*properties.Service)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %T", service.ErrTypeMismatch, properties.Tag, inst)
	}
	return svc, nil
}
