package ftpsession

import (
	"fmt"
	"io"
	"regexp"

	"github.com/kestrelsec/ftphoney/internal/dataprovider"
	"github.com/kestrelsec/ftphoney/internal/vfs"
)

var listDotfilesPattern = regexp.MustCompile("-.*a.*")

func (s *Session) handleUSER(arg string) (bool, error) {
	s.username = arg
	s.reply(331, "Please specify the password.")
	return true, nil
}

func (s *Session) handlePASS(arg string) (bool, error) {
	s.password = arg

	result, err := s.policy.Evaluate(s.username, s.password, s.srcIP)
	if err != nil {
		return false, fmt.Errorf("ftpsession: login policy: %w", err)
	}

	s.emitter.Login(s.srcIP, s.username, s.password)

	if !result.Admitted {
		if s.metrics != nil {
			s.metrics.LoginDenied()
		}
		s.reply(530, "Login incorrect.")
		return true, nil
	}
	if s.metrics != nil {
		s.metrics.LoginAdmitted()
	}

	s.authenticated = true
	s.attacker = result.Attacker
	fs := result.Attacker.FileSystem
	fs.CurrentPath = nil
	s.fs = &fs
	s.reply(230, "Login successful.")
	return true, nil
}

func (s *Session) handleACCT(arg string) (bool, error) {
	s.reply(530, "Rejected")
	return true, nil
}

func (s *Session) handleQUIT(arg string) (bool, error) {
	s.reply(221, "Bye.")
	return false, nil
}

func (s *Session) handleSYST(arg string) (bool, error) {
	if s.requireAuth() {
		return true, nil
	}
	s.reply(215, "UNIX Type: L8")
	return true, nil
}

func (s *Session) handleTYPE(arg string) (bool, error) {
	if s.requireAuth() {
		return true, nil
	}
	s.reply(200, "Always in binary mode")
	return true, nil
}

func (s *Session) handleMODE(arg string) (bool, error) {
	if s.requireAuth() {
		return true, nil
	}
	if arg == "S" {
		s.reply(200, "Command okay.")
	} else {
		s.reply(502, "Command not implemented.")
	}
	return true, nil
}

func (s *Session) handleSTRU(arg string) (bool, error) {
	if s.requireAuth() {
		return true, nil
	}
	if arg == "F" {
		s.reply(200, "Command okay.")
	} else {
		s.reply(502, "Command not implemented.")
	}
	return true, nil
}

func (s *Session) handleNOOP(arg string) (bool, error) {
	if s.requireAuth() {
		return true, nil
	}
	s.reply(200, "Command okay.")
	return true, nil
}

func (s *Session) handleHELP(arg string) (bool, error) {
	s.reply(530, s.cfg.HelpMessage)
	return true, nil
}

func (s *Session) handlePORT(arg string) (bool, error) {
	if s.requireAuth() {
		return true, nil
	}
	target, err := parsePortArg(arg)
	if err != nil {
		s.log.Info().Err(err).Msg("malformed PORT argument")
		s.reply(502, "Command not implemented.")
		return true, nil
	}
	s.dataTarget = target
	s.reply(200, "Command okay.")
	return true, nil
}

func (s *Session) handleCWD(arg string) (bool, error) {
	if s.requireAuth() {
		return true, nil
	}
	if !s.fs.Cd(arg) {
		s.reply(550, "Requested action not taken.")
		return true, nil
	}
	if err := s.saveFileSystem(); err != nil {
		return false, fmt.Errorf("ftpsession: save filesystem after CWD: %w", err)
	}
	s.reply(250, "Requested file action okay, completed.")
	return true, nil
}

func (s *Session) handlePWD(arg string) (bool, error) {
	if s.requireAuth() {
		return true, nil
	}
	s.reply(257, fmt.Sprintf("%q is the current directory", s.fs.Pwd()))
	return true, nil
}

func (s *Session) handleLIST(arg string) (bool, error) {
	if s.requireAuth() {
		return true, nil
	}
	var out string
	var ok bool
	if listDotfilesPattern.MatchString(arg) {
		out, ok = s.fs.LsLongA(s.attacker.ID)
	} else {
		out, ok = s.fs.LsLong(s.attacker.ID)
	}
	if !ok {
		s.reply(550, "Requested action not taken.")
		return true, nil
	}

	s.reply(150, "Here comes the directory listing.")
	dataConn, err := s.dialData()
	if err != nil {
		s.log.Warn().Err(err).Msg("LIST data channel failed")
		return true, nil
	}
	defer dataConn.Close()

	if _, err := dataConn.Write([]byte(out + "\r\n")); err != nil {
		s.log.Warn().Err(err).Msg("LIST data channel write failed")
		return true, nil
	}
	s.reply(226, "Closing data connection; requested action successful.")
	return true, nil
}

func (s *Session) handleSTOR(arg string) (bool, error) {
	if s.requireAuth() {
		return true, nil
	}
	s.reply(150, "Ok to send data.")
	dataConn, err := s.dialData()
	if err != nil {
		s.log.Warn().Err(err).Msg("STOR data channel failed")
		return true, nil
	}
	defer dataConn.Close()

	path, hash, size, err := s.realfs.Store(s.attacker.ID, s.rnd, dataConn)
	if err != nil {
		s.log.Warn().Err(err).Msg("STOR write failed")
		return true, nil
	}

	var location *string
	if s.cfg.RealUploadMode {
		location = &path
	} else {
		if err := s.realfs.Delete(path); err != nil {
			s.log.Warn().Err(err).Msg("STOR cleanup of dropped upload failed")
		}
	}

	fileID, err := s.provider.InsertUploadedFile(&dataprovider.UploadedFile{
		Filename:   arg,
		Location:   location,
		Hash:       hash,
		AttackerID: s.attacker.ID,
		Size:       size,
	})
	if err != nil {
		return false, fmt.Errorf("ftpsession: persist uploaded file: %w", err)
	}

	if s.metrics != nil {
		s.metrics.UploadReceived()
	}

	dirPath, filename := vfs.SplitPath(arg)
	if !s.fs.AddUploadedFile(dirPath, filename, fileID, size) {
		s.log.Warn().Str("path", arg).Msg("STOR could not place file in virtual tree")
	} else if err := s.saveFileSystem(); err != nil {
		return false, fmt.Errorf("ftpsession: save filesystem after STOR: %w", err)
	}

	s.reply(226, "Closing data connection; requested action successful.")
	return true, nil
}

func (s *Session) handleRETR(arg string) (bool, error) {
	if s.requireAuth() {
		return true, nil
	}
	f, ok := s.fs.FindFile(arg)
	if !ok {
		s.reply(550, "Failed")
		return true, nil
	}

	physicalPath, synthesized, err := s.resolvePhysical(f)
	if err != nil {
		s.log.Warn().Err(err).Msg("RETR could not resolve physical file")
		s.reply(550, "Failed")
		return true, nil
	}

	src, err := openReadable(physicalPath)
	if err != nil {
		s.log.Warn().Err(err).Msg("RETR could not open physical file")
		s.reply(550, "Failed")
		return true, nil
	}
	defer src.Close()

	s.reply(150, "Opening data connection.")
	dataConn, err := s.dialData()
	if err != nil {
		s.log.Warn().Err(err).Msg("RETR data channel failed")
		return true, nil
	}
	defer dataConn.Close()

	if _, err := io.Copy(dataConn, src); err != nil {
		s.log.Warn().Err(err).Msg("RETR data channel write failed")
		return true, nil
	}
	s.reply(226, "Closing data connection; requested action successful.")

	if synthesized {
		if err := s.realfs.Delete(physicalPath); err != nil {
			s.log.Warn().Err(err).Msg("RETR cleanup of synthesized file failed")
		}
	}
	return true, nil
}

func (s *Session) handleMKD(arg string) (bool, error) {
	if s.requireAuth() {
		return true, nil
	}
	if !s.fs.Mkdir(arg) {
		s.reply(550, "Requested action not taken.")
		return true, nil
	}
	if s.cfg.RealUploadMode {
		if err := s.realfs.MkdirP(s.attacker.ID, arg); err != nil {
			s.log.Warn().Err(err).Msg("MKD real-mirror failed")
		}
	}
	if err := s.saveFileSystem(); err != nil {
		return false, fmt.Errorf("ftpsession: save filesystem after MKD: %w", err)
	}
	s.reply(257, fmt.Sprintf("%q created.", arg))
	return true, nil
}

func (s *Session) handleRMD(arg string) (bool, error) {
	if s.requireAuth() {
		return true, nil
	}
	if !s.fs.Rmdir(arg) {
		s.reply(550, "Requested action not taken.")
		return true, nil
	}
	if err := s.saveFileSystem(); err != nil {
		return false, fmt.Errorf("ftpsession: save filesystem after RMD: %w", err)
	}
	s.reply(250, "Requested file action okay, completed.")
	return true, nil
}

func (s *Session) handleDELE(arg string) (bool, error) {
	if s.requireAuth() {
		return true, nil
	}
	f, found := s.fs.FindFile(arg)
	if !found || !s.fs.Rm(arg) {
		s.reply(550, "Requested action not taken.")
		return true, nil
	}
	if s.cfg.RealUploadMode && f.FileID != nil {
		if row, err := s.provider.FindFileByID(*f.FileID); err == nil && row.Location != nil {
			if err := s.realfs.Delete(*row.Location); err != nil {
				s.log.Warn().Err(err).Msg("DELE real-mirror delete failed")
			}
		}
	}
	if err := s.saveFileSystem(); err != nil {
		return false, fmt.Errorf("ftpsession: save filesystem after DELE: %w", err)
	}
	s.reply(250, "Requested file action okay, completed.")
	return true, nil
}

func (s *Session) handleCDUP(arg string) (bool, error) {
	if s.requireAuth() {
		return true, nil
	}
	s.reply(550, "Rejected.")
	return true, nil
}

func (s *Session) handleALLO(arg string) (bool, error) {
	if s.requireAuth() {
		return true, nil
	}
	s.reply(202, "Ignored.")
	return true, nil
}

func (s *Session) handleSTAT(arg string) (bool, error) {
	if s.requireAuth() {
		return true, nil
	}
	s.reply(504, "Rejected.")
	return true, nil
}
