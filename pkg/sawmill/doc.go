// Package sawmill extracts structured fields from raw log lines with a BERT
// token-classification model.
//
// Quick start:
//
//	s, err := sawmill.New(sawmill.WithModelDir("models/"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	rec, _ := s.Parse("Jan 12 10:01:02 server01 sshd[411]: session opened")
//	fmt.Println(rec.Fields["host"]) // server01
//
// Lines longer than the model's sequence length are split into overlapping
// windows and stitched back together, so every token is classified once.
//
// A Sawmill is safe for concurrent use. Create once, reuse across requests.
package sawmill
