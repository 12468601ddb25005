package binlog

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// ChangeKey rewrites the entire file under newKey atomically: write to a
// sibling path, fsync, then rename over the original (spec §4.3
// "change_key"). Concurrent rekeys are rejected with ErrRekeyInProgress
// rather than left to race (spec §5 "Rekey serialization").
func (b *Binlog) ChangeKey(newKey DbKey) error {
	if !b.rekeyMu.TryLock() {
		return ErrRekeyInProgress
	}
	defer b.rekeyMu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.f.Sync(); err != nil {
		return fmt.Errorf("sync before rekey: %w", err)
	}

	if _, err := b.f.Seek(int64(fixedHdrSize), io.SeekStart); err != nil {
		return err
	}
	rest, err := io.ReadAll(b.f)
	if err != nil {
		return fmt.Errorf("read body for rekey: %w", err)
	}
	if len(rest) < canarySize {
		return fmt.Errorf("%w: %s", ErrWrongKey, b.path)
	}

	readStream := newStream(deriveKey(b.key, b.salt[:]))
	plain := make([]byte, len(rest))
	readStream.XORKeyStream(plain, rest)

	if !bytes.Equal(plain[:canarySize], canaryPlain) {
		return fmt.Errorf("%w: %s", ErrWrongKey, b.path)
	}
	body := plain[canarySize:]

	sibling := siblingPath(b.path)
	sf, err := os.OpenFile(sibling, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create rekey sibling: %w", err)
	}

	var newSalt [saltSize]byte
	if newKey.Kind == DbKeyPassword {
		if _, err := randRead(newSalt[:]); err != nil {
			sf.Close()
			os.Remove(sibling)
			return err
		}
	}

	hdr := make([]byte, 0, fixedHdrSize)
	hdr = append(hdr, []byte(magic)...)
	hdr = appendUint32(hdr, fileVersion)
	hdr = append(hdr, byte(newKey.Kind))
	hdr = append(hdr, newSalt[:]...)

	writeStream := newStream(deriveKey(newKey, newSalt[:]))

	canary := make([]byte, canarySize)
	writeStream.XORKeyStream(canary, canaryPlain)

	cipherText := make([]byte, len(body))
	writeStream.XORKeyStream(cipherText, body)

	if _, err := sf.Write(hdr); err != nil {
		sf.Close()
		os.Remove(sibling)
		return fmt.Errorf("write rekeyed header: %w", err)
	}
	if _, err := sf.Write(canary); err != nil {
		sf.Close()
		os.Remove(sibling)
		return fmt.Errorf("write rekeyed canary: %w", err)
	}
	if _, err := sf.Write(cipherText); err != nil {
		sf.Close()
		os.Remove(sibling)
		return fmt.Errorf("write rekeyed body: %w", err)
	}
	if err := sf.Sync(); err != nil {
		sf.Close()
		os.Remove(sibling)
		return fmt.Errorf("sync rekeyed sibling: %w", err)
	}
	sf.Close()

	// The sibling is now fully written and fsynced; commit that fact by
	// renaming it to its ".ready" name before touching the original, per
	// spec §4.3's two-phase protocol. If the process dies before this
	// rename, recoverDanglingSibling finds only the ".tmp" name on the
	// next open and discards it instead of promoting a partial write.
	ready := readyPath(sibling)
	if err := os.Rename(sibling, ready); err != nil {
		os.Remove(sibling)
		return fmt.Errorf("mark rekeyed sibling ready: %w", err)
	}

	if err := os.Rename(ready, b.path); err != nil {
		os.Remove(ready)
		return fmt.Errorf("rename rekeyed sibling over original: %w", err)
	}

	if err := b.f.Close(); err != nil {
		return fmt.Errorf("close stale fd after rekey: %w", err)
	}

	f, err := os.OpenFile(b.path, os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("reopen rekeyed binlog: %w", err)
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return err
	}

	b.f = f
	b.key = newKey
	b.salt = newSalt
	b.writeStream = writeStream

	return nil
}
