package protocol

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/infobridge/infobridge/telemetry"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog/log"
)

// DefaultServerVersion is announced in the handshake unless overridden
const DefaultServerVersion = "8.0.32-infobridge"

// MySQL column types used in result sets
const (
	TypeLong      byte = 0x03
	TypeFloat     byte = 0x04
	TypeDouble    byte = 0x05
	TypeLongLong  byte = 0x08
	TypeVarString byte = 0xFD
)

const (
	comQuit      = 0x01
	comInitDB    = 0x02
	comQuery     = 0x03
	comFieldList = 0x04
	comPing      = 0x0E
)

var eofPacket = []byte{0xFE, 0, 0, 0x02, 0}

// MySQLServer implements a basic MySQL protocol server
type MySQLServer struct {
	address    string
	socketPath string
	socketPerm os.FileMode
	listeners  []net.Listener
	quit       chan struct{}
	wg         sync.WaitGroup
	handler    ConnectionHandler
	connIDGen  uint64
	connIDLock sync.Mutex
	stopOnce   sync.Once

	ctx    context.Context
	cancel context.CancelFunc

	conns          *xsync.MapOf[uint64, *clientConn]
	active         atomic.Int64
	maxConnections int
	serverVersion  string
}

type clientConn struct {
	session *ConnectionSession
	conn    net.Conn
}

// ConnectionHandler defines the interface for handling MySQL commands
type ConnectionHandler interface {
	HandleQuery(ctx context.Context, session *ConnectionSession, query string) (*ResultSet, error)
}

// ResultSet represents a MySQL result set
type ResultSet struct {
	Columns      []ColumnDef
	Rows         [][]interface{}
	RowsAffected int64
}

// ColumnDef represents a column definition
type ColumnDef struct {
	Name string
	Type byte
}

// NewMySQLServer creates a new MySQL server listening on address and, when
// socketPath is set, on a unix socket with the given permissions.
func NewMySQLServer(address, socketPath string, socketPerm os.FileMode, handler ConnectionHandler) *MySQLServer {
	ctx, cancel := context.WithCancel(context.Background())
	return &MySQLServer{
		address:       address,
		socketPath:    socketPath,
		socketPerm:    socketPerm,
		quit:          make(chan struct{}),
		handler:       handler,
		ctx:           ctx,
		cancel:        cancel,
		conns:         xsync.NewMapOf[uint64, *clientConn](),
		serverVersion: DefaultServerVersion,
	}
}

// SetMaxConnections limits concurrent client connections. Zero means unlimited.
func (s *MySQLServer) SetMaxConnections(n int) {
	s.maxConnections = n
}

// SetServerVersion sets the version string sent in the handshake.
func (s *MySQLServer) SetServerVersion(version string) {
	if version != "" {
		s.serverVersion = version
	}
}

// Start starts the MySQL server
func (s *MySQLServer) Start() error {
	tcp, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	s.listeners = append(s.listeners, tcp)
	log.Info().Str("address", tcp.Addr().String()).Msg("MySQL server started")

	if s.socketPath != "" {
		unix, err := s.listenUnix()
		if err != nil {
			tcp.Close()
			s.listeners = nil
			return err
		}
		s.listeners = append(s.listeners, unix)
		log.Info().Str("socket", s.socketPath).Msg("MySQL unix socket listening")
	}

	for _, l := range s.listeners {
		s.wg.Add(1)
		go s.acceptLoop(l)
	}
	return nil
}

func (s *MySQLServer) listenUnix() (net.Listener, error) {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to remove stale socket %s: %w", s.socketPath, err)
	}
	l, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(s.socketPath, s.socketPerm); err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to chmod socket %s: %w", s.socketPath, err)
	}
	return l, nil
}

// Addr returns the TCP listen address once started.
func (s *MySQLServer) Addr() net.Addr {
	if len(s.listeners) == 0 {
		return nil
	}
	return s.listeners[0].Addr()
}

// Stop stops the MySQL server, interrupting in-flight statements and
// closing client connections
func (s *MySQLServer) Stop() {
	s.stopOnce.Do(func() {
		close(s.quit)
		s.cancel()
		for _, l := range s.listeners {
			l.Close()
		}
		s.conns.Range(func(_ uint64, c *clientConn) bool {
			c.conn.Close()
			return true
		})
		s.wg.Wait()
		log.Info().Msg("MySQL server stopped")
	})
}

// SessionCount returns the number of connected clients.
func (s *MySQLServer) SessionCount() int {
	return s.conns.Size()
}

// Sessions snapshots every connected session ordered by connection id.
func (s *MySQLServer) Sessions() []SessionInfo {
	infos := make([]SessionInfo, 0, s.conns.Size())
	s.conns.Range(func(_ uint64, c *clientConn) bool {
		infos = append(infos, c.session.Info())
		return true
	})
	sort.Slice(infos, func(i, j int) bool { return infos[i].ConnID < infos[j].ConnID })
	return infos
}

// nextConnID generates a unique connection ID
func (s *MySQLServer) nextConnID() uint64 {
	s.connIDLock.Lock()
	defer s.connIDLock.Unlock()
	s.connIDGen++
	return s.connIDGen
}

func (s *MySQLServer) acceptLoop(l net.Listener) {
	defer s.wg.Done()

	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
				log.Error().Err(err).Msg("Accept error")
				continue
			}
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

func (s *MySQLServer) handleConnection(conn net.Conn) {
	defer conn.Close()

	if n := s.active.Add(1); s.maxConnections > 0 && n > int64(s.maxConnections) {
		s.active.Add(-1)
		log.Warn().Str("remote", conn.RemoteAddr().String()).Int("max", s.maxConnections).Msg("Connection limit reached")
		s.writeMySQLErr(conn, 0, ErrTooManyConnections())
		return
	}
	defer s.active.Add(-1)

	connID := s.nextConnID()

	// 1. Send Initial Handshake Packet
	if err := s.writeHandshake(conn, connID); err != nil {
		log.Error().Err(err).Msg("Failed to write handshake")
		return
	}

	// 2. Read Handshake Response
	payload, err := s.readPacket(conn)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read handshake response")
		return
	}
	resp, err := ParseHandshakeResponse(payload)
	if err != nil {
		log.Debug().Err(err).Msg("Malformed handshake response")
		s.writeMySQLErr(conn, 2, NewMySQLError(ErrCodeHandshake, SQLStateHandshake, "Bad handshake"))
		return
	}

	session := NewConnectionSession(connID, conn.RemoteAddr().String(), resp.Database)
	session.User = resp.Username

	s.conns.Store(connID, &clientConn{session: session, conn: conn})
	telemetry.MySQLConnections.Inc()
	defer func() {
		s.conns.Delete(connID)
		telemetry.MySQLConnections.Dec()
	}()

	// Stop may have swept conns before this one was stored
	select {
	case <-s.quit:
		return
	default:
	}

	log.Debug().
		Uint64("conn_id", connID).
		Str("remote", session.RemoteAddr).
		Str("user", session.User).
		Str("database", resp.Database).
		Msg("New connection")

	// 3. Send OK Packet (Authentication successful)
	if err := s.writeOK(conn, 2, 0); err != nil {
		log.Error().Err(err).Msg("Failed to write OK packet")
		return
	}

	// 4. Command Loop
	for {
		// Command packet is always sequence 0
		payload, err := s.readPacket(conn)
		if err != nil {
			select {
			case <-s.quit:
			default:
				if err != io.EOF {
					log.Debug().Err(err).Uint64("conn_id", connID).Msg("Read packet error")
				}
			}
			return
		}

		if len(payload) == 0 {
			continue
		}

		cmd := payload[0]
		log.Debug().Uint64("conn_id", connID).Hex("cmd", []byte{cmd}).Msg("Received command")

		switch cmd {
		case comInitDB:
			dbName := string(payload[1:])
			session.SetCurrentDatabase(dbName)
			log.Debug().Uint64("conn_id", connID).Str("database", dbName).Msg("Changed database")
			s.writeOK(conn, 1, 0)
		case comQuery:
			s.processQuery(conn, session, string(payload[1:]))
		case comFieldList:
			// Column completion is not supported; an empty list is valid
			s.writePacket(conn, 1, eofPacket)
		case comPing:
			s.writeOK(conn, 1, 0)
		case comQuit:
			return
		default:
			log.Warn().Hex("cmd", []byte{cmd}).Msg("Unsupported command")
			s.writeError(conn, 1, ErrCodeUnknownCommand, "Unknown command")
		}
	}
}

func (s *MySQLServer) processQuery(conn net.Conn, session *ConnectionSession, query string) {
	session.queries.Add(1)

	rs, err := s.handler.HandleQuery(s.ctx, session, query)
	if err != nil {
		s.writeMySQLErr(conn, 1, err)
		return
	}

	if rs == nil || (len(rs.Columns) == 0 && len(rs.Rows) == 0) {
		rowsAffected := int64(0)
		if rs != nil {
			rowsAffected = rs.RowsAffected
		}
		s.writeOK(conn, 1, rowsAffected)
		return
	}

	if err := s.writeResultSet(conn, 1, rs); err != nil {
		log.Debug().Err(err).Uint64("conn_id", session.ConnID).Msg("Failed to write result set")
	}
}

// --- Packet Writing Helpers ---

func (s *MySQLServer) writeHandshake(w io.Writer, connID uint64) error {
	// https://dev.mysql.com/doc/internals/en/connection-phase-packets.html#packet-Protocol::Handshake
	buf := new(bytes.Buffer)

	// Protocol version (10)
	buf.WriteByte(10)

	buf.WriteString(s.serverVersion)
	buf.WriteByte(0)

	binary.Write(buf, binary.LittleEndian, uint32(connID))

	// Auth plugin data part 1 (8 bytes)
	buf.WriteString("12345678")

	// Filler
	buf.WriteByte(0)

	// Lower capability flags: CLIENT_LONG_PASSWORD | CLIENT_PROTOCOL_41 |
	// CLIENT_TRANSACTIONS | CLIENT_SECURE_CONNECTION
	binary.Write(buf, binary.LittleEndian, uint16(0xa201))

	// Character set (utf8_general_ci = 33)
	buf.WriteByte(33)

	// Status flags (autocommit)
	binary.Write(buf, binary.LittleEndian, uint16(2))

	// Upper capability flags: CLIENT_PLUGIN_AUTH
	binary.Write(buf, binary.LittleEndian, uint16(0x0008))

	// Auth plugin data length (8 + 13)
	buf.WriteByte(21)

	// Reserved (10 bytes)
	buf.Write(make([]byte, 10))

	// Auth plugin data part 2 (13 bytes)
	buf.WriteString("123456789012\x00")

	buf.WriteString("mysql_native_password\x00")

	return s.writePacket(w, 0, buf.Bytes())
}

func (s *MySQLServer) writeOK(w io.Writer, seq byte, rowsAffected int64) error {
	buf := new(bytes.Buffer)
	buf.WriteByte(0x00)
	buf.Write(packLengthEncodedInt(uint64(rowsAffected)))
	// Last insert ID
	buf.Write(packLengthEncodedInt(0))
	// SERVER_STATUS_AUTOCOMMIT
	binary.Write(buf, binary.LittleEndian, uint16(0x0002))
	// Warnings
	binary.Write(buf, binary.LittleEndian, uint16(0))
	return s.writePacket(w, seq, buf.Bytes())
}

func (s *MySQLServer) writeError(w io.Writer, seq byte, code uint16, msg string) error {
	return s.writeErrorWithState(w, seq, code, SQLStateGeneral, msg)
}

func (s *MySQLServer) writeErrorWithState(w io.Writer, seq byte, code uint16, sqlState, msg string) error {
	buf := new(bytes.Buffer)
	buf.WriteByte(0xFF)
	binary.Write(buf, binary.LittleEndian, code)
	buf.WriteByte('#')
	buf.WriteString(sqlState)
	buf.WriteString(msg)

	return s.writePacket(w, seq, buf.Bytes())
}

// writeMySQLErr writes err as an error packet, mapping it to a MySQL code first
func (s *MySQLServer) writeMySQLErr(w io.Writer, seq byte, err error) error {
	mysqlErr := ConvertToMySQLError(err)
	return s.writeErrorWithState(w, seq, mysqlErr.Code, mysqlErr.SQLState, mysqlErr.Message)
}

func (s *MySQLServer) writeResultSet(w io.Writer, seq byte, rs *ResultSet) error {
	// 1. Column Count
	if err := s.writePacket(w, seq, packLengthEncodedInt(uint64(len(rs.Columns)))); err != nil {
		return err
	}
	seq++

	// 2. Column Definitions
	for _, col := range rs.Columns {
		buf := new(bytes.Buffer)

		writeLenEncString(buf, "def")    // Catalog
		writeLenEncString(buf, "")       // Schema
		writeLenEncString(buf, "tbl")    // Table
		writeLenEncString(buf, "tbl")    // Org Table
		writeLenEncString(buf, col.Name) // Name
		writeLenEncString(buf, col.Name) // Org Name

		buf.WriteByte(0x0c)                                  // Length of fixed fields
		binary.Write(buf, binary.LittleEndian, uint16(33))   // Charset
		binary.Write(buf, binary.LittleEndian, uint32(1024)) // Length
		buf.WriteByte(col.Type)                              // Type
		binary.Write(buf, binary.LittleEndian, uint16(0))    // Flags
		buf.WriteByte(0)                                     // Decimals
		buf.Write([]byte{0, 0})                              // Filler

		if err := s.writePacket(w, seq, buf.Bytes()); err != nil {
			return err
		}
		seq++
	}

	// 3. EOF Packet
	if err := s.writePacket(w, seq, eofPacket); err != nil {
		return err
	}
	seq++

	// 4. Rows
	for _, row := range rs.Rows {
		buf := new(bytes.Buffer)
		for _, val := range row {
			if val == nil {
				buf.WriteByte(0xFB) // NULL
			} else {
				writeLenEncString(buf, fmt.Sprintf("%v", val))
			}
		}
		if err := s.writePacket(w, seq, buf.Bytes()); err != nil {
			return err
		}
		seq++
	}

	// 5. EOF Packet
	return s.writePacket(w, seq, eofPacket)
}

func (s *MySQLServer) writePacket(w io.Writer, seq byte, payload []byte) error {
	length := len(payload)
	header := []byte{
		byte(length),
		byte(length >> 8),
		byte(length >> 16),
		seq,
	}

	if _, err := w.Write(header); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	return nil
}

func (s *MySQLServer) readPacket(r io.Reader) ([]byte, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	length := int(uint32(header[0]) | uint32(header[1])<<8 | uint32(header[2])<<16)

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}

	return payload, nil
}

// --- Utils ---

func packLengthEncodedInt(n uint64) []byte {
	if n < 251 {
		return []byte{byte(n)}
	}
	if n < 65536 {
		return []byte{0xFC, byte(n), byte(n >> 8)}
	}
	if n < 16777216 {
		return []byte{0xFD, byte(n), byte(n >> 8), byte(n >> 16)}
	}
	return []byte{0xFE, byte(n), byte(n >> 8), byte(n >> 16), byte(n >> 24),
		byte(n >> 32), byte(n >> 40), byte(n >> 48), byte(n >> 56)}
}

func writeLenEncString(buf *bytes.Buffer, s string) {
	buf.Write(packLengthEncodedInt(uint64(len(s))))
	buf.WriteString(s)
}
