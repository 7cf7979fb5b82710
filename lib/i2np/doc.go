// Package i2np carries the part of the I2P Network Protocol a tunnel hop
// needs to learn its own configuration: the cleartext BuildRequestRecord.
//
// The creator of a tunnel produces one record per hop with RecordsForTunnel.
// A relay parses its record with ReadBuildRequestRecord and turns it into the
// single-hop view with (BuildRequestRecord).HopConfig. The relay never sees
// the other records, so it never learns the rest of the path.
//
// Record encryption (ElGamal, ECIES) belongs to the transport of the build
// message and is not handled here.
package i2np
