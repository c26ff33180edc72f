package extract

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
	"math/big"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/crypto/md4"
)

// DefaultIDInterpolationPattern is used when no pattern is configured.
const DefaultIDInterpolationPattern = "[sha512:contenthash:base64:6]"

// hashPlaceholder matches [<hashType>:contenthash:<digestType>:<length>],
// every part but the hash name being optional.
var hashPlaceholder = regexp.MustCompile(`\[(?:([^:\]]+):)?(?:hash|contenthash)(?::([a-z]+[0-9]*))?(?::([0-9]+))?\]`)

var hashFactories = map[string]func() hash.Hash{
	"md4":    md4.New,
	"md5":    md5.New,
	"sha1":   sha1.New,
	"sha256": sha256.New,
	"sha512": sha512.New,
}

var baseEncodeTables = map[int]string{
	26: "abcdefghijklmnopqrstuvwxyz",
	32: "123456789abcdefghjkmnpqrstuvwxyz",
	36: "0123456789abcdefghijklmnopqrstuvwxyz",
	49: "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ",
	52: "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ",
	58: "123456789abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ",
	62: "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ",
}

// InterpolateID renders pattern for a message lacking an id. The hashed
// content is the default message, suffixed with "#description" when a
// description exists. [name] and [ext] expand from the source file.
func InterpolateID(pattern, file, defaultMessage, description string) (string, error) {
	content := defaultMessage
	if description != "" {
		content = defaultMessage + "#" + description
	}

	var firstErr error
	out := hashPlaceholder.ReplaceAllStringFunc(pattern, func(m string) string {
		sub := hashPlaceholder.FindStringSubmatch(m)
		digest, err := hashDigest([]byte(content), sub[1], sub[2], sub[3])
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return digest
	})
	if firstErr != nil {
		return "", firstErr
	}

	ext := filepath.Ext(file)
	out = strings.ReplaceAll(out, "[ext]", strings.TrimPrefix(ext, "."))
	out = strings.ReplaceAll(out, "[name]", strings.TrimSuffix(filepath.Base(file), ext))
	return out, nil
}

func hashDigest(content []byte, hashType, digestType, length string) (string, error) {
	if hashType == "" {
		hashType = "md4"
	}
	if digestType == "" {
		digestType = "hex"
	}
	factory, ok := hashFactories[hashType]
	if !ok {
		return "", fmt.Errorf("unsupported hash type %q", hashType)
	}
	h := factory()
	h.Write(content)
	sum := h.Sum(nil)

	var digest string
	switch digestType {
	case "hex":
		digest = hex.EncodeToString(sum)
	case "base64":
		digest = base64.StdEncoding.EncodeToString(sum)
	case "base64url":
		digest = base64.RawURLEncoding.EncodeToString(sum)
	default:
		base, err := strconv.Atoi(strings.TrimPrefix(digestType, "base"))
		table, known := baseEncodeTables[base]
		if err != nil || !known {
			return "", fmt.Errorf("unsupported digest type %q", digestType)
		}
		digest = encodeToBase(sum, table)
	}

	if length != "" {
		n, _ := strconv.Atoi(length)
		if n > 0 && n < len(digest) {
			digest = digest[:n]
		}
	}
	return digest, nil
}

func encodeToBase(sum []byte, table string) string {
	num := new(big.Int).SetBytes(sum)
	base := big.NewInt(int64(len(table)))
	mod := new(big.Int)

	var out []byte
	for num.Sign() > 0 {
		num.DivMod(num, base, mod)
		out = append(out, table[mod.Int64()])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}
