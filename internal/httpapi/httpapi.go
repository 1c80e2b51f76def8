// Package httpapi implements the loopback query/inspection service: the six
// endpoints that read session state and serve paged records, random-access
// reads, byte-pattern search, range extraction, and a BMP visualization.
//
// Random-access reads over the session's current file are done through
// readerat.ReadSeeker (github.com/google/wuffs/lib/readerat), one fresh
// instance per request over a freshly opened os.File, so concurrent
// requests never share a Seek cursor. /search instead scans its own freshly
// opened os.File with ReadAt.
package httpapi

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/google/wuffs/lib/readerat"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/rustedkoi/sentinelnav/internal/bmpimg"
	"github.com/rustedkoi/sentinelnav/internal/fingerprint"
	"github.com/rustedkoi/sentinelnav/internal/session"
	"github.com/rustedkoi/sentinelnav/internal/store"
)

const (
	maxReadLength     = 8192
	searchWindowSize  = 1024 * 1024
	maxTxtExportBytes = 16384
)

// Server wires the six endpoints in §6 onto a gorilla/mux router, reading
// and (for /load) mutating sess.
type Server struct {
	sess *session.Session
	log  *logrus.Logger
}

// New builds a Server and its router.
func New(sess *session.Session, log *logrus.Logger) (*Server, *mux.Router) {
	s := &Server{sess: sess, log: log}
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/data", s.handleData).Methods(http.MethodGet)
	r.HandleFunc("/read", s.handleRead).Methods(http.MethodGet)
	r.HandleFunc("/search", s.handleSearch).Methods(http.MethodGet)
	r.HandleFunc("/download", s.handleDownload).Methods(http.MethodGet)
	r.HandleFunc("/load", s.handleLoad).Methods(http.MethodPost)
	return s, r
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.sess.Current()
	chunks, anoms, err := snap.Store.GetPage(0, 50000)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	total, err := snap.Store.Total()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	info, _ := os.Stat(snap.Path)
	var size int64
	if info != nil {
		size = info.Size()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := reportTemplate.Execute(w, reportData{
		Filename:  basename(snap.Path),
		FileSize:  size,
		Total:     total,
		ModeName:  snap.Config.Name,
		DataJSON:  marshalChunksJSON(chunks),
		AnomJSON:  marshalAnomsJSON(anoms),
		GenID:     snap.GenID,
	}); err != nil {
		s.log.WithError(err).Error("render index")
	}
}

func basename(path string) string {
	i := strings.LastIndexAny(path, `/\`)
	if i < 0 {
		return path
	}
	return path[i+1:]
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 0)
	size := queryInt(r, "size", 5000)
	if page < 0 || size <= 0 {
		http.Error(w, "page must be >= 0 and size must be > 0", http.StatusBadRequest)
		return
	}

	snap := s.sess.Current()
	chunks, anoms, err := snap.Store.GetPage(page, size)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	total, err := snap.Store.Total()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]interface{}{
		"chunks": chunkRows(chunks),
		"anom":   anomRows(anoms),
		"total":  total,
	})
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	offset, ok := queryInt64(r, "offset")
	if !ok {
		http.Error(w, "offset is required", http.StatusBadRequest)
		return
	}
	length := queryInt(r, "length", maxReadLength)
	if length > maxReadLength || length <= 0 {
		length = maxReadLength
	}

	snap := s.sess.Current()
	f, err := snap.OpenForRandomAccess()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer f.Close()

	data, err := readRange(f, offset, length)
	if err != nil {
		http.Error(w, errors.Wrap(err, "read").Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]interface{}{
		"hex":  hex.EncodeToString(data),
		"arch": fingerprint.Identify(data),
	})
}

// readRange reads up to length bytes starting at offset, returning
// whatever is actually available (possibly fewer, possibly zero, at EOF).
func readRange(f *os.File, offset int64, length int) ([]byte, error) {
	rs := &readerat.ReadSeeker{ReaderAt: f, Size: maxFileSize(f)}
	if _, err := rs.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}
	buf := make([]byte, length)
	n, err := io.ReadFull(rs, buf)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		err = nil
	}
	return buf[:n], err
}

func maxFileSize(f *os.File) int64 {
	info, err := f.Stat()
	if err != nil {
		return 0
	}
	return info.Size()
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	hexStr := r.URL.Query().Get("hex")
	hexStr = strings.ReplaceAll(hexStr, " ", "")
	hexStr = strings.ReplaceAll(hexStr, "0x", "")
	needle, err := hex.DecodeString(hexStr)
	if err != nil || len(needle) == 0 {
		writeJSON(w, map[string]interface{}{"found": false, "error": "malformed hex pattern"})
		return
	}

	snap := s.sess.Current()
	f, err := snap.OpenForRandomAccess()
	if err != nil {
		writeJSON(w, map[string]interface{}{"found": false, "error": err.Error()})
		return
	}
	defer f.Close()

	offset, found, err := slidingSearch(f, needle)
	if err != nil {
		writeJSON(w, map[string]interface{}{"found": false, "error": err.Error()})
		return
	}
	if !found {
		writeJSON(w, map[string]interface{}{"found": false})
		return
	}
	writeJSON(w, map[string]interface{}{"found": true, "offset": offset})
}

// slidingSearch scans f with a searchWindowSize sliding window, overlapping
// each read by len(needle)-1 bytes so a match straddling a window boundary
// is never missed.
func slidingSearch(f *os.File, needle []byte) (int64, bool, error) {
	buf := make([]byte, searchWindowSize)
	var pos int64
	for {
		n, err := f.ReadAt(buf, pos)
		if n > 0 {
			if idx := bytes.Index(buf[:n], needle); idx != -1 {
				return pos + int64(idx), true, nil
			}
		}
		if err == io.EOF {
			return 0, false, nil
		}
		if err != nil {
			return 0, false, err
		}
		if n == searchWindowSize {
			overlap := len(needle) - 1
			pos += int64(n - overlap)
		} else {
			return 0, false, nil
		}
	}
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = "bin"
	}

	switch mode {
	case "bmp":
		s.downloadBMP(w)
	case "txt":
		s.downloadTxt(w, r)
	default:
		s.downloadBin(w, r)
	}
}

func (s *Server) downloadBMP(w http.ResponseWriter) {
	snap := s.sess.Current()
	spectral, err := snap.Store.GetAllSpectral()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	pixels := make([]bmpimg.RGB, len(spectral))
	for i, sp := range spectral {
		pixels[i] = bmpimg.RGB{R: sp.R, G: sp.G, B: sp.B}
	}
	body := bmpimg.Encode(pixels)

	w.Header().Set("Content-Type", "image/bmp")
	w.Header().Set("Content-Disposition", `attachment; filename="scan_visualization.bmp"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Write(body)
}

func (s *Server) downloadTxt(w http.ResponseWriter, r *http.Request) {
	offset, length, ok := s.parseOffsetLength(w, r)
	if !ok {
		return
	}
	readLen := length
	if readLen > maxTxtExportBytes {
		readLen = maxTxtExportBytes
	}

	snap := s.sess.Current()
	f, err := snap.OpenForRandomAccess()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer f.Close()

	data, err := readRange(f, offset, readLen)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="extract_%X.txt"`, offset))
	w.Write([]byte(renderTxtReport(offset, length, data)))
}

func renderTxtReport(offset int64, length int, data []byte) string {
	var b strings.Builder
	fmt.Fprintf(&b, "SENTINEL NAV EXTRACT REPORT\n")
	fmt.Fprintf(&b, "Offset: 0x%X | Length: %d bytes\n", offset, length)
	fmt.Fprintf(&b, "Analysis: %s\n", fingerprint.Identify(data))
	b.WriteString(strings.Repeat("-", 40))
	b.WriteString("\n")
	b.WriteString("HEX DUMP (First 16KB max):\n")
	hexStr := hex.EncodeToString(data)
	for i := 0; i < len(hexStr); i += 32 {
		end := i + 32
		if end > len(hexStr) {
			end = len(hexStr)
		}
		b.WriteString(hexStr[i:end])
		b.WriteString("\n")
	}
	return b.String()
}

func (s *Server) downloadBin(w http.ResponseWriter, r *http.Request) {
	offset, length, ok := s.parseOffsetLength(w, r)
	if !ok {
		return
	}

	snap := s.sess.Current()
	f, err := snap.OpenForRandomAccess()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="extract_%X.bin"`, offset))
	w.Header().Set("Content-Length", strconv.Itoa(length))

	rs := &readerat.ReadSeeker{ReaderAt: f, Size: maxFileSize(f)}
	if _, err := rs.Seek(offset, io.SeekStart); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	io.CopyN(w, rs, int64(length))
}

func (s *Server) parseOffsetLength(w http.ResponseWriter, r *http.Request) (int64, int, bool) {
	offset, ok := queryInt64(r, "offset")
	if !ok {
		http.Error(w, "offset is required", http.StatusBadRequest)
		return 0, 0, false
	}
	length, ok := queryInt64(r, "length")
	if !ok || length < 0 {
		http.Error(w, "length is required", http.StatusBadRequest)
		return 0, 0, false
	}
	return offset, int(length), true
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form body", http.StatusBadRequest)
		return
	}
	newPath := r.FormValue("filepath")
	if newPath == "" {
		http.Error(w, "filepath is required", http.StatusBadRequest)
		return
	}

	info, err := os.Stat(newPath)
	if err != nil || info.IsDir() {
		http.Error(w, "file not found or invalid path", http.StatusBadRequest)
		return
	}

	s.log.WithField("path", newPath).Info("load request received")
	if err := s.sess.Load(r.Context(), newPath); err != nil {
		http.Error(w, errors.Wrap(err, "scan failed").Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// chunkRows/anomRows flatten store rows into the [][]interface{} tuple
// shape the /data and / JSON responses use, per spec.md §6.
func chunkRows(rows []store.ChunkRow) [][]interface{} {
	out := make([][]interface{}, len(rows))
	for i, c := range rows {
		out[i] = []interface{}{c.Offset, c.Length, c.Entropy, c.R, c.G, c.B}
	}
	return out
}

func anomRows(rows []store.AnomRow) [][]interface{} {
	out := make([][]interface{}, len(rows))
	for i, a := range rows {
		out[i] = []interface{}{a.AnomScore, a.FluxType}
	}
	return out
}

func marshalChunksJSON(rows []store.ChunkRow) template.JS {
	b, err := json.Marshal(chunkRows(rows))
	if err != nil {
		return "[]"
	}
	return template.JS(b)
}

func marshalAnomsJSON(rows []store.AnomRow) template.JS {
	b, err := json.Marshal(anomRows(rows))
	if err != nil {
		return "[]"
	}
	return template.JS(b)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func queryInt64(r *http.Request, key string) (int64, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
