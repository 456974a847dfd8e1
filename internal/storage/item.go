package storage

import (
	"fmt"
	"io"
	"sort"
)

// item is the decoded form shared by every engine: a type tag followed by
// the raw payload.
type item struct {
	typ  ItemType
	data []byte
}

func encodeItem(typ ItemType, data []byte) []byte {
	buf := make([]byte, 1+len(data))
	buf[0] = byte(typ)
	copy(buf[1:], data)
	return buf
}

func decodeItem(raw []byte) (item, error) {
	if len(raw) == 0 {
		return item{}, fmt.Errorf("corrupt item: empty record")
	}
	data := make([]byte, len(raw)-1)
	copy(data, raw[1:])
	return item{typ: ItemType(raw[0]), data: data}, nil
}

func validateKey(key string) error {
	if key == "" || len(key) > MaxKeyLen {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

func validateNamespace(name string) error {
	if name == "" || len(name) > MaxKeyLen {
		return fmt.Errorf("%w: namespace %q", ErrInvalidKey, name)
	}
	return nil
}

func validateWrite(key string, typ ItemType, data []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	switch {
	case typ.Fixed():
		if len(data) != typ.Width() {
			return fmt.Errorf("%s payload is %d bytes, want %d", typ, len(data), typ.Width())
		}
	case typ == TypeString, typ == TypeBlob:
		if len(data) > MaxValueSize {
			return fmt.Errorf("%w: %d bytes", ErrValueTooLong, len(data))
		}
	default:
		return fmt.Errorf("cannot write item of %s", typ)
	}
	return nil
}

// checkRead applies the shared read rules to a stored item.
func checkRead(it item, typ ItemType, out []byte) error {
	if it.typ != typ {
		return fmt.Errorf("%w: stored %s, requested %s", ErrTypeMismatch, it.typ, typ)
	}
	if len(out) < len(it.data) {
		return fmt.Errorf("read buffer is %d bytes, item needs %d", len(out), len(it.data))
	}
	copy(out, it.data)
	return nil
}

// firstFreeIndex picks the lowest namespace index not present in used.
func firstFreeIndex(used map[NamespaceIndex]struct{}) (NamespaceIndex, error) {
	for idx := MinNamespaceIndex; idx <= MaxNamespaceIndex; idx++ {
		if _, taken := used[idx]; !taken {
			return idx, nil
		}
	}
	return 0, ErrNamespaceFull
}

type dumpRecord struct {
	ns  NamespaceIndex
	key string
	it  item
}

type namespaceRecord struct {
	name string
	idx  NamespaceIndex
}

func writeDump(w io.Writer, namespaces []namespaceRecord, records []dumpRecord) error {
	sort.Slice(namespaces, func(i, j int) bool { return namespaces[i].idx < namespaces[j].idx })
	sort.Slice(records, func(i, j int) bool {
		if records[i].ns != records[j].ns {
			return records[i].ns < records[j].ns
		}
		return records[i].key < records[j].key
	})

	for _, ns := range namespaces {
		if _, err := fmt.Fprintf(w, "namespace %d %q\n", ns.idx, ns.name); err != nil {
			return err
		}
	}
	for _, r := range records {
		if _, err := fmt.Fprintf(w, "item ns=%d key=%q type=%s size=%d\n", r.ns, r.key, r.it.typ, len(r.it.data)); err != nil {
			return err
		}
	}
	return nil
}
