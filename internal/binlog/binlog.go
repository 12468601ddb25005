// Package binlog implements the write-ahead binary log of spec §4.3: a
// durable, optionally-encrypted, ordered append log, replayable at
// startup, with live rekey and crash safety. Record framing follows
// §4.3's "Record layout" with one added payload_len header field (see
// record.go); ChangeKey follows the two-phase
// sibling-file-then-atomic-rename protocol §4.3 "Crash recovery"
// describes, using github.com/google/uuid to name the sibling file
// (teacher dependency, per SPEC_FULL.md §3).
package binlog

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha512"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/roasbeef/tdcore/internal/baselib/log"
)

const (
	magic        = "TDBL"
	fileVersion  = uint32(1)
	saltSize     = 16
	fixedHdrSize = len(magic) + 4 /* version */ + 1 /* key kind */ + saltSize
)

// canaryPlain is a fixed known plaintext encrypted right after the header
// with the file's derived key (spec §4.3: "The header is authenticated").
// Since the header fields themselves (magic/version/kind/salt) are stored
// unencrypted, authentication of the *key* itself has to live in the first
// thing the key encrypts; decrypting this canary and comparing against the
// constant is how Init distinguishes "wrong key" from "legitimately empty
// file" deterministically, rather than silently replaying zero records.
var canaryPlain = []byte("tdcore-binlog-ok")

const canarySize = 16

// ReplayFunc is invoked once per valid record, in EventID order, during
// Init's replay pass (spec §4.3: "replays each valid record by invoking
// replay_callback"). Returning an error aborts replay; the first such
// error is surfaced to the caller and the file is left unchanged
// (spec §7, "Propagation policy").
type ReplayFunc func(rec Record) error

// ErrRekeyInProgress is returned when ChangeKey is called while another
// rekey on the same Binlog is already running (spec §5, "Rekey
// serialization": "fails concurrent rekeys with a documented error, not
// by undefined behavior").
var ErrRekeyInProgress = fmt.Errorf("binlog rekey already in progress")

// ErrWrongKey is returned by Init/openAndReplay when the supplied key is of
// a different kind than the one recorded in the header, or fails to decrypt
// the canary written right after the header, meaning it is not the key the
// file was written with. This is what makes Init's oldDbKey
// fallback (and S3's "reopen with old empty key fails" scenario)
// deterministic instead of silently replaying zero records.
var ErrWrongKey = fmt.Errorf("wrong binlog key")

// Binlog is a single-writer append log. It is not safe for concurrent
// AddEvent calls from multiple goroutines; ConcurrentBinlog provides that.
type Binlog struct {
	mu sync.Mutex

	path string
	f    *os.File

	key  DbKey
	salt [saltSize]byte

	writeStream cipher.Stream
	nextEventID uint64

	rekeyMu sync.Mutex
}

// Init opens path, replaying each valid record via replayCallback, and
// truncates the file to the end of the last good record on any corrupt or
// truncated trailing data (spec §4.3 "init", "Crash recovery"). If
// decryption with dbKey fails and oldDbKey is provided, Init retries with
// oldDbKey and, on success, rewrites the file under dbKey — the same path
// ChangeKey uses, satisfying §8.3's rekey-correctness property.
func Init(path string, replayCallback ReplayFunc, dbKey DbKey, oldDbKey *DbKey) (*Binlog, error) {
	if err := recoverDanglingSibling(path); err != nil {
		return nil, err
	}

	b, err := openAndReplay(path, replayCallback, dbKey)
	if err == nil {
		return b, nil
	}

	if oldDbKey == nil {
		return nil, err
	}

	b, err2 := openAndReplay(path, replayCallback, *oldDbKey)
	if err2 != nil {
		return nil, fmt.Errorf("init with new key: %w; init with old key: %v", err, err2)
	}

	if err := b.ChangeKey(dbKey); err != nil {
		b.Close()
		return nil, fmt.Errorf("rewrite under new key after old-key replay: %w", err)
	}

	return b, nil
}

func openAndReplay(path string, replayCallback ReplayFunc, dbKey DbKey) (*Binlog, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open binlog %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	b := &Binlog{path: path, f: f, key: dbKey}

	if info.Size() == 0 {
		if err := b.writeHeader(); err != nil {
			f.Close()
			return nil, err
		}
		b.nextEventID = 1
		return b, nil
	}

	if err := b.readHeaderAndReplay(replayCallback); err != nil {
		f.Close()
		return nil, err
	}

	return b, nil
}

func (b *Binlog) writeHeader() error {
	var salt [saltSize]byte
	if b.key.Kind == DbKeyPassword {
		if _, err := randRead(salt[:]); err != nil {
			return err
		}
	}
	b.salt = salt

	hdr := make([]byte, 0, fixedHdrSize)
	hdr = append(hdr, []byte(magic)...)
	hdr = appendUint32(hdr, fileVersion)
	hdr = append(hdr, byte(b.key.Kind))
	hdr = append(hdr, salt[:]...)

	if _, err := b.f.Write(hdr); err != nil {
		return fmt.Errorf("write binlog header: %w", err)
	}

	b.writeStream = newStream(deriveKey(b.key, salt[:]))

	canary := make([]byte, canarySize)
	b.writeStream.XORKeyStream(canary, canaryPlain)
	if _, err := b.f.Write(canary); err != nil {
		return fmt.Errorf("write binlog canary: %w", err)
	}

	return b.f.Sync()
}

func (b *Binlog) readHeaderAndReplay(replayCallback ReplayFunc) error {
	if _, err := b.f.Seek(0, os.SEEK_SET); err != nil {
		return err
	}

	hdr := make([]byte, fixedHdrSize)
	if _, err := io.ReadFull(b.f, hdr); err != nil {
		return fmt.Errorf("read binlog header: %w", err)
	}

	if string(hdr[:len(magic)]) != magic {
		return fmt.Errorf("bad binlog magic")
	}

	kind := DbKeyKind(hdr[len(magic)+4])
	if kind != b.key.Kind {
		return fmt.Errorf("%w: db key kind mismatch for %s", ErrWrongKey, b.path)
	}

	var salt [saltSize]byte
	copy(salt[:], hdr[len(magic)+5:])
	b.salt = salt

	rest, err := io.ReadAll(b.f)
	if err != nil {
		return fmt.Errorf("read binlog body: %w", err)
	}
	if len(rest) < canarySize {
		return fmt.Errorf("%w: %s", ErrWrongKey, b.path)
	}

	readStream := newStream(deriveKey(b.key, salt[:]))

	canary := make([]byte, canarySize)
	readStream.XORKeyStream(canary, rest[:canarySize])
	if !bytes.Equal(canary, canaryPlain) {
		return fmt.Errorf("%w: %s", ErrWrongKey, b.path)
	}

	body := rest[canarySize:]
	plain := make([]byte, len(body))
	readStream.XORKeyStream(plain, body)

	goodLen, lastEventID, err := replayRecords(plain, replayCallback)
	if err != nil {
		return err
	}

	if goodLen != len(plain) {
		log.WarnS(context.Background(), "truncating binlog at last good record",
			fmt.Errorf("corrupt or truncated tail"),
			"path", b.path, "good_bytes", goodLen, "total_bytes", len(plain))

		if err := b.f.Truncate(int64(fixedHdrSize + canarySize + goodLen)); err != nil {
			return fmt.Errorf("truncate corrupt binlog tail: %w", err)
		}
	}

	b.nextEventID = lastEventID + 1

	if _, err := b.f.Seek(0, os.SEEK_END); err != nil {
		return err
	}

	// Re-derive a fresh write stream positioned after the canary and the
	// good record prefix by re-consuming keystream bytes for that whole
	// region; since the cipher is a pure counter-mode stream, XOR-ing
	// canarySize+goodLen bytes of zero advances it to exactly that offset.
	writeStream := newStream(deriveKey(b.key, salt[:]))
	discard := make([]byte, canarySize+goodLen)
	writeStream.XORKeyStream(discard, discard)
	b.writeStream = writeStream

	return nil
}

func replayRecords(plain []byte, cb ReplayFunc) (goodLen int, lastEventID uint64, err error) {
	offset := 0
	for offset < len(plain) {
		rec, n, perr := parseRecord(plain[offset:])
		if perr != nil {
			// Truncated or corrupt tail: stop here, keep
			// everything decoded so far.
			break
		}

		if cb != nil {
			if cbErr := cb(rec); cbErr != nil {
				return 0, 0, fmt.Errorf("replay callback: %w", cbErr)
			}
		}

		lastEventID = rec.EventID
		offset += n
		goodLen = offset
	}

	return goodLen, lastEventID, nil
}

// NextEventID returns the id the next appended event will receive.
func (b *Binlog) NextEventID() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nextEventID
}

// AddEvent appends a new record with the next EventID, encrypting it with
// the configured key if any (spec §4.3 "add_raw_event": "guarantees
// durability only after flush()"). It returns the assigned EventID.
func (b *Binlog) AddEvent(typeTag, flags uint32, extra uint64, payload []byte) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextEventID
	rec := Record{EventID: id, Type: typeTag, Flags: flags, Extra: extra, Payload: payload}

	plain := rec.Marshal()
	cipherText := make([]byte, len(plain))
	b.writeStream.XORKeyStream(cipherText, plain)

	if _, err := b.f.Write(cipherText); err != nil {
		return 0, fmt.Errorf("append binlog record: %w", err)
	}

	b.nextEventID++
	return id, nil
}

// Flush fsyncs the file, guaranteeing durability of every AddEvent call so
// far (spec §4.3).
func (b *Binlog) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.f.Sync()
}

// Close flushes and releases the file descriptor.
func (b *Binlog) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.f.Sync(); err != nil {
		b.f.Close()
		return err
	}
	return b.f.Close()
}

// Destroy removes path and any sidecar files (spec §4.3 "destroy").
func Destroy(path string) error {
	if err := recoverDanglingSibling(path); err != nil {
		// Best effort; still attempt removal below.
		log.WarnS(context.Background(), "destroy: dangling sibling recovery failed", err,
			"path", path)
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("destroy binlog %s: %w", path, err)
	}

	return nil
}

// siblingPath names the in-progress rekey sibling: written to incrementally,
// and never promoted directly — only readyPath's rename target is.
func siblingPath(path string) string {
	return path + ".rekey-" + uuid.NewString() + ".tmp"
}

// readyPath derives the "fully written and fsynced" marker name for a
// sibling produced by siblingPath, preserving its uuid suffix. Renaming
// tmpPath to this name is the commit point of spec §4.3's two-phase
// protocol: "(1) sibling file fully written and fsynced; (2) atomic
// rename". Only a file under this name is eligible for promotion over the
// original on recovery; a surviving ".tmp" was still being written when the
// process died and must be discarded, not promoted.
func readyPath(tmpPath string) string {
	return strings.TrimSuffix(tmpPath, ".tmp") + ".ready"
}

// recoverDanglingSibling implements spec §4.3's crash-recovery rule for a
// rekey interrupted mid-flight: "a dangling sibling replaces the original"
// if present. Only a ".ready" sibling — one that finished writing and was
// fsynced before the crash — is promoted; a bare ".tmp" sibling is an
// incomplete write and is discarded instead.
func recoverDanglingSibling(path string) error {
	if err := discardIncompleteSiblings(path); err != nil {
		return err
	}

	matches, err := filepath.Glob(path + ".rekey-*.ready")
	if err != nil || len(matches) == 0 {
		return nil //nolint:nilerr
	}

	newest := matches[len(matches)-1]
	if err := os.Rename(newest, path); err != nil {
		return fmt.Errorf("recover dangling rekey sibling: %w", err)
	}
	for _, m := range matches {
		if m != newest {
			_ = os.Remove(m)
		}
	}

	return nil
}

// discardIncompleteSiblings removes any ".tmp" rekey sibling left behind by
// a crash that occurred before the write-and-fsync phase committed (i.e.
// before it was renamed to its ".ready" name). These were never fsynced in
// full and must never be promoted over the original.
func discardIncompleteSiblings(path string) error {
	matches, err := filepath.Glob(path + ".rekey-*.tmp")
	if err != nil {
		return nil //nolint:nilerr
	}
	for _, m := range matches {
		_ = os.Remove(m)
	}
	return nil
}

func newStream(key []byte) cipher.Stream {
	if len(key) == 0 {
		return identityStream{}
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		// key is always 32 bytes from deriveKey; this cannot fail
		// for AES-256.
		panic(err)
	}

	iv := sha512.Sum512(key)
	return cipher.NewCTR(block, iv[:aes.BlockSize])
}

// identityStream is the no-op cipher.Stream used for DbKeyEmpty.
type identityStream struct{}

func (identityStream) XORKeyStream(dst, src []byte) {
	copy(dst, src)
}

func appendUint32(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func randRead(p []byte) (int, error) {
	return rand.Read(p)
}
