package sentencetransformers

import _ "embed"

//go:embed scripts/encode_server.py
var encodeServerScript []byte

//go:embed scripts/requirements.txt
var requirements []byte
