package executor

import (
	"bytes"
	"container/heap"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"time"

	"github.com/pierrec/lz4/v4"

	"github.com/dshills/QuantaJoin/internal/types"
)

// externalSort implements external merge sort for large datasets.
// Sorted runs beyond the memory budget are LZ4-compressed and spilled
// to temporary files, then merged back with a k-way heap.
type externalSort struct {
	compareFn   func(*Row, *Row) int // Comparison function
	memoryLimit int64                // Memory limit in bytes
	tempDir     string               // Directory for temporary files
	spillFiles  []string             // List of spill files created
	rowEstimate int                  // Estimated bytes per row
	stats       *ExecStats
}

// newExternalSort creates a new external sort run builder.
func newExternalSort(compareFn func(*Row, *Row) int, memoryLimit int64, tempDir string, stats *ExecStats) *externalSort {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &externalSort{
		compareFn:   compareFn,
		memoryLimit: memoryLimit,
		tempDir:     tempDir,
		rowEstimate: 100, // Assume 100 bytes per row initially
		stats:       stats,
	}
}

// Sort sorts the input and returns a sorted iterator
func (es *externalSort) Sort(input SimpleRowIterator) (SimpleRowIterator, error) {
	// Create sorted runs
	runs, err := es.createSortedRuns(input)
	if err != nil {
		return nil, fmt.Errorf("failed to create sorted runs: %w", err)
	}

	// If only one run and it's in memory, return it directly
	if len(runs) == 1 {
		return runs[0], nil
	}

	// Merge multiple runs
	return es.mergeRuns(runs)
}

// createSortedRuns creates sorted runs from the input
func (es *externalSort) createSortedRuns(input SimpleRowIterator) ([]SimpleRowIterator, error) {
	var runs []SimpleRowIterator

	for {
		// Load batch up to memory limit
		batch, err := es.loadBatch(input)
		if err != nil {
			return nil, err
		}

		if len(batch) == 0 {
			break // No more input
		}

		// Sort batch in memory
		sort.SliceStable(batch, func(i, j int) bool {
			return es.compareFn(batch[i], batch[j]) < 0
		})

		// Decide whether to keep in memory or spill
		batchSize := es.estimateBatchSize(batch)
		if batchSize > es.memoryLimit/4 || len(runs) > 0 {
			// Spill to disk if batch is large or we already have spilled runs
			run, err := es.spillToDisk(batch)
			if err != nil {
				return nil, err
			}
			runs = append(runs, run)
		} else {
			// Keep in memory
			run := NewMemoryIterator(batch)
			runs = append(runs, run)
		}
	}

	return runs, nil
}

// loadBatch loads rows until the memory limit is reached
func (es *externalSort) loadBatch(input SimpleRowIterator) ([]*Row, error) {
	var batch []*Row
	currentSize := int64(0)

	for currentSize < es.memoryLimit {
		row, err := input.Next()
		if err != nil {
			return nil, err
		}
		if row == nil {
			break // End of input
		}

		rowCopy := &Row{
			Values: make([]types.Value, len(row.Values)),
		}
		copy(rowCopy.Values, row.Values)

		batch = append(batch, rowCopy)
		currentSize += int64(es.rowEstimate)

		// Update row estimate based on actual data
		if len(batch) == 1 {
			es.rowEstimate = estimateRowSize(rowCopy)
		}
	}

	return batch, nil
}

// estimateRowSize estimates the memory size of a row
func estimateRowSize(row *Row) int {
	size := 8 // Overhead
	for _, val := range row.Values {
		switch val.Type() {
		case types.Integer, types.Double, types.Timestamp:
			size += 8
		case types.Boolean:
			size++
		case types.Text:
			str, _ := val.AsString()
			size += len(str) + 8
		default:
			size += 16
		}
	}
	return size
}

// estimateBatchSize estimates total memory used by a batch
func (es *externalSort) estimateBatchSize(batch []*Row) int64 {
	if len(batch) == 0 {
		return 0
	}
	return int64(len(batch) * es.rowEstimate)
}

// spillToDisk writes a sorted batch to a compressed temporary file
func (es *externalSort) spillToDisk(batch []*Row) (SimpleRowIterator, error) {
	var buf bytes.Buffer
	writer := NewRowWriter(&buf)
	for _, row := range batch {
		if err := writer.WriteRow(row); err != nil {
			return nil, fmt.Errorf("failed to encode row: %w", err)
		}
	}

	tempFile, err := os.CreateTemp(es.tempDir, "quantajoin_sort_*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	fileName := tempFile.Name()
	es.spillFiles = append(es.spillFiles, fileName)

	stored, err := writeRunFile(tempFile, buf.Bytes())
	if err != nil {
		tempFile.Close()
		return nil, fmt.Errorf("failed to write run: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return nil, err
	}

	if es.stats != nil {
		es.stats.SpilledRuns++
		es.stats.SpilledBytes += stored
	}

	// Return iterator for the file
	return NewDiskIterator(fileName), nil
}

// mergeRuns merges multiple sorted runs into a single sorted stream
func (es *externalSort) mergeRuns(runs []SimpleRowIterator) (SimpleRowIterator, error) {
	if len(runs) == 0 {
		return NewMemoryIterator(nil), nil
	}

	if len(runs) == 1 {
		return runs[0], nil
	}

	// Use k-way merge
	return NewMergeIterator(runs, es.compareFn), nil
}

// Cleanup removes temporary files
func (es *externalSort) Cleanup() {
	for _, file := range es.spillFiles {
		os.Remove(file)
	}
	es.spillFiles = nil
}

// Run file framing: a flag byte (0 raw, 1 LZ4), the uncompressed and
// stored sizes, then the payload as a single block.

const (
	runFlagRaw = 0
	runFlagLZ4 = 1
)

// writeRunFile compresses and writes one run payload, returning the
// number of payload bytes stored.
func writeRunFile(w io.Writer, data []byte) (int64, error) {
	payload := data
	flag := uint8(runFlagRaw)

	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, dst, nil)
	if err != nil {
		return 0, fmt.Errorf("LZ4 compression failed: %w", err)
	}
	// n == 0 means the block was incompressible; store it raw
	if n > 0 && n < len(data) {
		payload = dst[:n]
		flag = runFlagLZ4
	}

	if len(data) > math.MaxUint32 || len(payload) > math.MaxUint32 {
		return 0, fmt.Errorf("run too large to spill: %d bytes", len(data))
	}

	if err := binary.Write(w, binary.LittleEndian, flag); err != nil {
		return 0, err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(data))); err != nil { //nolint:gosec // Overflow checked above
		return 0, err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(payload))); err != nil { //nolint:gosec // Overflow checked above
		return 0, err
	}
	if _, err := w.Write(payload); err != nil {
		return 0, err
	}

	return int64(len(payload)), nil
}

// readRunFile loads and decompresses one run payload.
func readRunFile(r io.Reader) ([]byte, error) {
	var flag uint8
	if err := binary.Read(r, binary.LittleEndian, &flag); err != nil {
		return nil, err
	}
	var originalSize, storedSize uint32
	if err := binary.Read(r, binary.LittleEndian, &originalSize); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &storedSize); err != nil {
		return nil, err
	}

	payload := make([]byte, storedSize)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}

	if flag == runFlagRaw {
		return payload, nil
	}

	data := make([]byte, originalSize)
	n, err := lz4.UncompressBlock(payload, data)
	if err != nil {
		return nil, fmt.Errorf("LZ4 decompression failed: %w", err)
	}
	if n != int(originalSize) {
		return nil, fmt.Errorf("LZ4 decompression size mismatch: expected %d, got %d", originalSize, n)
	}

	return data, nil
}

// MemoryIterator iterates over rows in memory
type MemoryIterator struct {
	rows     []*Row
	position int
}

// NewMemoryIterator creates a new memory iterator
func NewMemoryIterator(rows []*Row) *MemoryIterator {
	return &MemoryIterator{
		rows:     rows,
		position: 0,
	}
}

func (m *MemoryIterator) Next() (*Row, error) {
	if m.position >= len(m.rows) {
		return nil, nil // nolint:nilnil // EOF
	}
	row := m.rows[m.position]
	m.position++
	return row, nil
}

func (m *MemoryIterator) Close() error {
	m.rows = nil
	return nil
}

// DiskIterator iterates over rows stored in a spilled run file. The
// run is decompressed in full on first access.
type DiskIterator struct {
	fileName string
	reader   *RowReader
	loaded   bool
}

// NewDiskIterator creates a new disk iterator
func NewDiskIterator(fileName string) *DiskIterator {
	return &DiskIterator{
		fileName: fileName,
	}
}

func (d *DiskIterator) Next() (*Row, error) {
	if !d.loaded {
		file, err := os.Open(d.fileName)
		if err != nil {
			return nil, fmt.Errorf("failed to open spill file: %w", err)
		}
		data, err := readRunFile(file)
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read spill file: %w", err)
		}
		d.reader = NewRowReader(bytes.NewReader(data))
		d.loaded = true
	}

	return d.reader.ReadRow()
}

func (d *DiskIterator) Close() error {
	d.reader = nil
	return nil
}

// MergeIterator performs k-way merge of sorted iterators
type MergeIterator struct {
	iterators []SimpleRowIterator
	compareFn func(*Row, *Row) int
	heap      *mergeHeap
}

// NewMergeIterator creates a new merge iterator
func NewMergeIterator(iterators []SimpleRowIterator, compareFn func(*Row, *Row) int) *MergeIterator {
	return &MergeIterator{
		iterators: iterators,
		compareFn: compareFn,
	}
}

func (m *MergeIterator) Next() (*Row, error) {
	// Initialize heap on first call
	if m.heap == nil {
		if err := m.initialize(); err != nil {
			return nil, err
		}
	}

	// Get minimum element
	if m.heap.Len() == 0 {
		return nil, nil // nolint:nilnil // EOF
	}

	// Pop minimum
	item := heap.Pop(m.heap).(*mergeItem)

	// Try to get next row from same iterator
	nextRow, err := m.iterators[item.iterIdx].Next()
	if err != nil {
		return nil, err
	}

	if nextRow != nil {
		// Push new item
		heap.Push(m.heap, &mergeItem{
			row:     nextRow,
			iterIdx: item.iterIdx,
		})
	}

	return item.row, nil
}

func (m *MergeIterator) initialize() error {
	h := &mergeHeap{
		items:     make([]*mergeItem, 0, len(m.iterators)),
		compareFn: m.compareFn,
	}

	// Get first row from each iterator
	for i, iter := range m.iterators {
		row, err := iter.Next()
		if err != nil {
			return err
		}
		if row != nil {
			h.items = append(h.items, &mergeItem{
				row:     row,
				iterIdx: i,
			})
		}
	}

	heap.Init(h)
	m.heap = h

	return nil
}

func (m *MergeIterator) Close() error {
	for _, iter := range m.iterators {
		if err := iter.Close(); err != nil {
			return err
		}
	}
	return nil
}

// mergeItem represents an item in the merge heap
type mergeItem struct {
	row     *Row
	iterIdx int
}

// mergeHeap implements heap.Interface for k-way merge
type mergeHeap struct {
	items     []*mergeItem
	compareFn func(*Row, *Row) int
}

func (h *mergeHeap) Len() int { return len(h.items) }

func (h *mergeHeap) Less(i, j int) bool {
	return h.compareFn(h.items[i].row, h.items[j].row) < 0
}

func (h *mergeHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
}

func (h *mergeHeap) Push(x interface{}) {
	h.items = append(h.items, x.(*mergeItem))
}

func (h *mergeHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[0 : n-1]
	return item
}

// Row serialization for spilling to disk

const (
	spillTypeNull      = 0
	spillTypeInteger   = 1
	spillTypeBoolean   = 2
	spillTypeText      = 3
	spillTypeDouble    = 4
	spillTypeTimestamp = 5
)

// RowWriter writes rows to a spill file
type RowWriter struct {
	writer io.Writer
}

// NewRowWriter creates a new row writer
func NewRowWriter(w io.Writer) *RowWriter {
	return &RowWriter{writer: w}
}

// WriteRow writes a row to the file
func (rw *RowWriter) WriteRow(row *Row) error {
	// Write number of values
	numValues := int32(len(row.Values)) //nolint:gosec // Row width is far below int32
	if err := binary.Write(rw.writer, binary.LittleEndian, numValues); err != nil {
		return err
	}

	// Write each value
	for _, val := range row.Values {
		if err := rw.writeValue(val); err != nil {
			return err
		}
	}

	return nil
}

func (rw *RowWriter) writeValue(val types.Value) error {
	// Write type
	var typeID int8
	switch val.Type() {
	case types.Integer:
		typeID = spillTypeInteger
	case types.Boolean:
		typeID = spillTypeBoolean
	case types.Text:
		typeID = spillTypeText
	case types.Double:
		typeID = spillTypeDouble
	case types.Timestamp:
		typeID = spillTypeTimestamp
	default:
		typeID = spillTypeNull
	}

	if err := binary.Write(rw.writer, binary.LittleEndian, typeID); err != nil {
		return err
	}

	// Write null flag
	if err := binary.Write(rw.writer, binary.LittleEndian, val.IsNull()); err != nil {
		return err
	}

	if val.IsNull() {
		return nil
	}

	// Write value based on type
	switch val.Type() {
	case types.Integer:
		v, _ := val.AsInt()
		return binary.Write(rw.writer, binary.LittleEndian, v)

	case types.Boolean:
		v, _ := val.AsBool()
		return binary.Write(rw.writer, binary.LittleEndian, v)

	case types.Double:
		v, _ := val.AsDouble()
		return binary.Write(rw.writer, binary.LittleEndian, v)

	case types.Timestamp:
		v, _ := val.AsTimestamp()
		return binary.Write(rw.writer, binary.LittleEndian, v.UnixNano())

	case types.Text:
		v, _ := val.AsString()
		// Write length then string
		strLen := int32(len(v)) //nolint:gosec // Spilled strings are far below int32
		if err := binary.Write(rw.writer, binary.LittleEndian, strLen); err != nil {
			return err
		}
		_, err := rw.writer.Write([]byte(v))
		return err

	default:
		return fmt.Errorf("unsupported type for serialization: %v", val.Type())
	}
}

// RowReader reads rows from a spill file
type RowReader struct {
	reader io.Reader
}

// NewRowReader creates a new row reader
func NewRowReader(r io.Reader) *RowReader {
	return &RowReader{reader: r}
}

// ReadRow reads a row from the file
func (rr *RowReader) ReadRow() (*Row, error) {
	// Read number of values
	var numValues int32
	if err := binary.Read(rr.reader, binary.LittleEndian, &numValues); err != nil {
		if err == io.EOF {
			return nil, nil // nolint:nilnil // EOF
		}
		return nil, err
	}

	// Read values
	values := make([]types.Value, numValues)
	for i := range values {
		val, err := rr.readValue()
		if err != nil {
			return nil, err
		}
		values[i] = val
	}

	return &Row{Values: values}, nil
}

func (rr *RowReader) readValue() (types.Value, error) {
	// Read type
	var typ int8
	if err := binary.Read(rr.reader, binary.LittleEndian, &typ); err != nil {
		return types.Value{}, err
	}

	// Read null flag
	var isNull bool
	if err := binary.Read(rr.reader, binary.LittleEndian, &isNull); err != nil {
		return types.Value{}, err
	}

	if isNull {
		return types.NewNullValue(), nil
	}

	// Read value based on type
	switch typ {
	case spillTypeInteger:
		var v int64
		if err := binary.Read(rr.reader, binary.LittleEndian, &v); err != nil {
			return types.Value{}, err
		}
		return types.NewIntegerValue(v), nil

	case spillTypeBoolean:
		var v bool
		if err := binary.Read(rr.reader, binary.LittleEndian, &v); err != nil {
			return types.Value{}, err
		}
		return types.NewBooleanValue(v), nil

	case spillTypeDouble:
		var v float64
		if err := binary.Read(rr.reader, binary.LittleEndian, &v); err != nil {
			return types.Value{}, err
		}
		return types.NewDoubleValue(v), nil

	case spillTypeTimestamp:
		var ns int64
		if err := binary.Read(rr.reader, binary.LittleEndian, &ns); err != nil {
			return types.Value{}, err
		}
		return types.NewTimestampValue(time.Unix(0, ns).UTC()), nil

	case spillTypeText:
		// Read length then string
		var length int32
		if err := binary.Read(rr.reader, binary.LittleEndian, &length); err != nil {
			return types.Value{}, err
		}

		buf := make([]byte, length)
		if _, err := io.ReadFull(rr.reader, buf); err != nil {
			return types.Value{}, err
		}
		return types.NewTextValue(string(buf)), nil

	default:
		return types.Value{}, fmt.Errorf("unsupported type for deserialization: %v", typ)
	}
}
