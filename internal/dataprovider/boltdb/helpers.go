package boltdb

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"

	dp "github.com/forscht/filedeck/internal/dataprovider"
	"github.com/forscht/filedeck/pkg/ns"
)

func serializeFile(file *dp.File) ([]byte, error) {
	var buffer bytes.Buffer
	if err := gob.NewEncoder(&buffer).Encode(file); err != nil {
		return nil, fmt.Errorf("serialize file %d: %w", file.Id, err)
	}
	return buffer.Bytes(), nil
}

func deserializeFile(data []byte) (*dp.File, error) {
	file := new(dp.File)
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(file); err != nil {
		return nil, fmt.Errorf("deserialize file: %w", err)
	}
	return file, nil
}

// itob encodes an id as 8 big-endian bytes so cursor order follows id order.
func itob(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func btoi(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b))
}

// treeKey builds the index key parent|child. The root parent is encoded as 0.
func treeKey(parent ns.NullID, id int64) []byte {
	return append(itob(int64(parent)), itob(id)...)
}
